package sourcemodule

import (
	"github.com/mantonx/streamgate/internal/modules/modulemanager"
)

// Auto-register the module when imported
func init() {
	Register()
}

// Register registers the source module with the module system
func Register() {
	modulemanager.Register(NewModule())
}
