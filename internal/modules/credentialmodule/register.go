package credentialmodule

import (
	"github.com/mantonx/streamgate/internal/modules/modulemanager"
)

// Auto-register the module when imported
func init() {
	Register()
}

// Register registers the credential module with the module system
func Register() {
	modulemanager.Register(NewModule())
}
