package enum

type SourceKind string

const (
	SourcePortal  SourceKind = "portal"
	SourceFeed    SourceKind = "feed"
	SourceGeneric SourceKind = "generic"
)

func (t SourceKind) String() string {
	return string(t)
}

type CollectionState string

const (
	CollectionIdle    CollectionState = "idle"
	CollectionRunning CollectionState = "running"
	CollectionBackoff CollectionState = "backoff"
	// CollectionConfigError means the last run failed on a configuration problem; the
	// scheduler will not retry the source until its credential is updated.
	CollectionConfigError CollectionState = "config-error"
)

func (t CollectionState) String() string {
	return string(t)
}

type TriggerKind string

const (
	TriggerScheduled TriggerKind = "scheduled"
	TriggerManual    TriggerKind = "manual"
)

func (t TriggerKind) String() string {
	return string(t)
}
