package geo

import (
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/threatgate/threatgate/internal/logger"
)

// Resolver maps IPs to ISO country codes from a local GeoLite2 database. It is an
// enrichment aid only: a nil resolver or a failed lookup leaves the country unset.
type Resolver struct {
	db  *geoip2.Reader
	log logger.Logger
}

// NewResolver opens the country database at path. An empty path disables
// enrichment without error.
func NewResolver(path string, log logger.Logger) (*Resolver, error) {
	if path == "" {
		return nil, nil
	}

	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Resolver{db: db, log: log}, nil
}

func (r *Resolver) CountryCode(ip string) *string {
	if r == nil || r.db == nil {
		return nil
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil
	}

	record, err := r.db.Country(parsed)
	if err != nil || record.Country.IsoCode == "" {
		return nil
	}

	code := record.Country.IsoCode
	return &code
}

func (r *Resolver) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
