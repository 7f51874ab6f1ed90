package engine

import "time"

// Wait conditions accepted by the engine.
const (
	ConditionExited  = "exited"
	ConditionStopped = "stopped"
	ConditionRunning = "running"
)

// PullPolicy controls when PullImage contacts the registry.
type PullPolicy string

const (
	PullAlways  PullPolicy = "always"
	PullMissing PullPolicy = "missing"
	PullNever   PullPolicy = "never"
	PullNewer   PullPolicy = "newer"
)

func (p PullPolicy) Valid() bool {
	switch p {
	case PullAlways, PullMissing, PullNever, PullNewer:
		return true
	default:
		return false
	}
}

// Mount is either a bind mount (source, destination, options) or a tmpfs
// mount (destination only).
type Mount struct {
	Type        string   `json:"type"`
	Source      string   `json:"source,omitempty"`
	Destination string   `json:"destination"`
	Options     []string `json:"options,omitempty"`
}

// BindMount mounts source at destination with the given options ("ro", "rw", ...).
func BindMount(source, destination string, options ...string) Mount {
	return Mount{
		Type:        "bind",
		Source:      source,
		Destination: destination,
		Options:     options,
	}
}

// TmpfsMount mounts an in-memory filesystem at destination.
func TmpfsMount(destination string) Mount {
	return Mount{
		Type:        "tmpfs",
		Source:      "tmpfs",
		Destination: destination,
	}
}

// ContainerSpec describes a container to create. It is built once per build and
// not modified afterwards.
type ContainerSpec struct {
	Image              string            `json:"image"`
	Command            []string          `json:"command,omitempty"`
	User               string            `json:"user,omitempty"`
	Name               string            `json:"name,omitempty"`
	Labels             map[string]string `json:"labels,omitempty"`
	Mounts             []Mount           `json:"mounts,omitempty"`
	WorkDir            string            `json:"work_dir,omitempty"`
	NoNewPrivileges    bool              `json:"no_new_privileges"`
	ReadOnlyFilesystem bool              `json:"read_only_filesystem"`
	Volatile           bool              `json:"volatile"`
	Remove             bool              `json:"remove"`
}

// ContainerSummary is one entry of ListContainers.
type ContainerSummary struct {
	ID       string            `json:"Id"`
	Names    []string          `json:"Names"`
	Image    string            `json:"Image"`
	State    string            `json:"State"`
	Labels   map[string]string `json:"Labels"`
	Created  time.Time         `json:"Created"`
	Exited   bool              `json:"Exited"`
	ExitCode int               `json:"ExitCode"`
}

// DeletedContainer is one entry of a delete response.
type DeletedContainer struct {
	ID       string `json:"Id"`
	Err      string `json:"Err,omitempty"`
	RawInput string `json:"RawInput,omitempty"`
}

// PrunedContainer reports a removed container and the space it reclaimed.
type PrunedContainer struct {
	ID   string `json:"Id"`
	Size int64  `json:"Size"`
	Err  string `json:"Err,omitempty"`
}

// PruneFilters selects stopped containers to remove.
type PruneFilters struct {
	Until  []time.Time
	Labels []string
}

// PingInfo carries the engine version metadata reported in ping headers.
type PingInfo struct {
	APIVersion       string
	LibpodAPIVersion string
	BuildahVersion   string
	Server           string
}
