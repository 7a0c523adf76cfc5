package enum

type DecisionReason string

const (
	DecisionWhitelist DecisionReason = "whitelist"
	DecisionBlacklist DecisionReason = "blacklist"
	DecisionNone      DecisionReason = "none"
)

func (t DecisionReason) String() string {
	return string(t)
}

type AllowlistOrigin string

const (
	AllowlistManual   AllowlistOrigin = "manual"
	AllowlistImported AllowlistOrigin = "imported"
)

func (t AllowlistOrigin) String() string {
	return string(t)
}
