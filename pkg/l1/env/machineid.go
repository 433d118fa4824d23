package env

import (
	"github.com/denisbrodbeck/machineid"
)

// MachineID retrieves an ID identifying the machine, specific to appID so
// the raw machine id isn't exposed. It's empty when not available.
func MachineID(appID string) string {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		return ""
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}
