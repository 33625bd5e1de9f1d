package instance

import "github.com/angelmondragon/hireloop-backend/pkg/env"

// GetID returns the process instance identifier or a default value.
// DYNO is set on Heroku; INSTANCE_ID covers other hosts.
func GetID() string {
	if id := env.First("DYNO", "INSTANCE_ID"); id != "" {
		return id
	}
	return "local"
}
