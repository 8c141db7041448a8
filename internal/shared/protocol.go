package shared

import "fmt"

// FieldError reports the first payload field that failed validation.
// Field is a dotted path into the JSON document, e.g.
// "cpu_info.cpu_usage_percent" or "processes[3].name".
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Msg
}

// Required numeric fields are pointers so a missing key is distinguishable
// from an explicit zero. Optional fields are pointers so null round-trips.

type CPUInfo struct {
	PhysicalCores    *int     `json:"physical_cores"`
	TotalCores       *int     `json:"total_cores"`
	MaxFrequency     *float64 `json:"max_frequency"`
	CurrentFrequency *float64 `json:"current_frequency"`
	CPUUsagePercent  *float64 `json:"cpu_usage_percent"`
}

type ProcessInfo struct {
	PID      *int    `json:"pid"`
	Name     string  `json:"name"`
	Username *string `json:"username"`
}

type UserSession struct {
	Name     string   `json:"name"`
	Terminal *string  `json:"terminal"`
	Host     *string  `json:"host"`
	Started  *float64 `json:"started"` // seconds since epoch, may be fractional
}

type OSInfo struct {
	System   string `json:"system"`
	Version  string `json:"version"`
	Hostname string `json:"hostname"`
}

// AgentData is the inbound snapshot payload posted by an agent.
type AgentData struct {
	CPUInfo   *CPUInfo      `json:"cpu_info"`
	Processes []ProcessInfo `json:"processes"`
	Users     []UserSession `json:"users"`
	OSInfo    *OSInfo       `json:"os_info"`
}

// AgentRecordOut is the outbound record payload: the snapshot blocks plus
// the server-assigned id and observed client address. Neither extra field
// is ever accepted from a client.
type AgentRecordOut struct {
	ID        int64         `json:"id"`
	ClientIP  string        `json:"client_ip"`
	CPUInfo   CPUInfo       `json:"cpu_info"`
	Processes []ProcessInfo `json:"processes"`
	Users     []UserSession `json:"users"`
	OSInfo    OSInfo        `json:"os_info"`
}

// IngestResponse is the body returned on a successful snapshot POST.
type IngestResponse struct {
	Message  string `json:"message"`
	ClientIP string `json:"client_ip"`
	ID       int64  `json:"id"`
}

// Validate checks the payload shape and returns a *FieldError for the
// first violation. It never touches storage.
func (d *AgentData) Validate() error {
	if d.CPUInfo == nil {
		return &FieldError{"cpu_info", "required"}
	}
	if err := d.CPUInfo.validate("cpu_info"); err != nil {
		return err
	}
	if d.Processes == nil {
		return &FieldError{"processes", "required"}
	}
	for i := range d.Processes {
		if err := d.Processes[i].validate(fmt.Sprintf("processes[%d]", i)); err != nil {
			return err
		}
	}
	if d.Users == nil {
		return &FieldError{"users", "required"}
	}
	for i := range d.Users {
		if err := d.Users[i].validate(fmt.Sprintf("users[%d]", i)); err != nil {
			return err
		}
	}
	if d.OSInfo == nil {
		return &FieldError{"os_info", "required"}
	}
	return d.OSInfo.validate("os_info")
}

func (c *CPUInfo) validate(path string) error {
	if c.PhysicalCores == nil {
		return &FieldError{path + ".physical_cores", "required"}
	}
	if c.TotalCores == nil {
		return &FieldError{path + ".total_cores", "required"}
	}
	if c.CPUUsagePercent == nil {
		return &FieldError{path + ".cpu_usage_percent", "required"}
	}
	return nil
}

func (p *ProcessInfo) validate(path string) error {
	if p.PID == nil {
		return &FieldError{path + ".pid", "required"}
	}
	if p.Name == "" {
		return &FieldError{path + ".name", "required"}
	}
	return nil
}

func (u *UserSession) validate(path string) error {
	if u.Name == "" {
		return &FieldError{path + ".name", "required"}
	}
	if u.Started == nil {
		return &FieldError{path + ".started", "required"}
	}
	return nil
}

func (o *OSInfo) validate(path string) error {
	if o.System == "" {
		return &FieldError{path + ".system", "required"}
	}
	if o.Version == "" {
		return &FieldError{path + ".version", "required"}
	}
	if o.Hostname == "" {
		return &FieldError{path + ".hostname", "required"}
	}
	return nil
}
