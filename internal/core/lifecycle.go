package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable is implemented by modules that accept YAML configuration.
// Configure runs right after instantiation with the module's raw config node.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner is implemented by modules that need setup after configuration:
// applying defaults that depend on the AppContext, opening resources, and
// registering services for other modules.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator is implemented by modules that can check their configuration.
// Validate runs after Provision and must not have side effects.
type Validator interface {
	Validate() error
}

// Starter is implemented by modules that run background work (listeners,
// schedulers). Start is called once every module is provisioned.
type Starter interface {
	Start() error
}

// Stopper is implemented by modules holding resources. Stop is called in
// reverse start order during shutdown.
type Stopper interface {
	Stop(ctx context.Context) error
}
