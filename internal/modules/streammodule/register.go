package streammodule

import (
	"github.com/mantonx/streamgate/internal/modules/modulemanager"
)

// Auto-register the module when imported
func init() {
	Register()
}

// Register registers the stream module with the module system
func Register() {
	modulemanager.Register(NewModule())
}
