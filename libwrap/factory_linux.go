package libwrap

import (
	"fmt"

	"github.com/gamewrap/libwrap/configs"
	"github.com/gamewrap/libwrap/configs/validate"
)

// Create validates config and computes its binding plan.
func Create(config *configs.Config) (*Launcher, error) {
	if err := validate.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	plan, err := CreatePlan(config.Profile, config.InstallRoot, config.DataRoot)
	if err != nil {
		return nil, err
	}
	return &Launcher{
		config:  config,
		plan:    plan,
		mounter: SystemMounter(),
	}, nil
}
