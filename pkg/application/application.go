package application

import (
	"embed"
	"reflect"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorumworks/govern-sdk/pkg/eventbus"
)

// Module is a self-contained feature unit. Register wires its
// services, schema, and event subscribers into the application.
type Module interface {
	Name() string
	Register(app Application) error
}

// Application is the composition root modules register into.
type Application interface {
	DB() *pgxpool.Pool
	EventPublisher() eventbus.EventBus
	RegisterServices(services ...interface{})
	Service(service interface{}) interface{}
	Services() map[reflect.Type]interface{}
	RegisterSchema(fs *embed.FS)
	Schemas() []*embed.FS
}

type ApplicationOptions struct {
	Pool     *pgxpool.Pool
	EventBus eventbus.EventBus
}

func New(opts *ApplicationOptions) Application {
	return &application{
		pool:     opts.Pool,
		eventBus: opts.EventBus,
		services: make(map[reflect.Type]interface{}),
	}
}

type application struct {
	pool     *pgxpool.Pool
	eventBus eventbus.EventBus
	services map[reflect.Type]interface{}
	schemas  []*embed.FS
}

func (app *application) DB() *pgxpool.Pool {
	return app.pool
}

func (app *application) EventPublisher() eventbus.EventBus {
	return app.eventBus
}

// RegisterServices registers a new service in the application by its type
func (app *application) RegisterServices(services ...interface{}) {
	for _, service := range services {
		serviceType := reflect.TypeOf(service).Elem()
		app.services[serviceType] = service
	}
}

func (app *application) Service(service interface{}) interface{} {
	serviceType := reflect.TypeOf(service)
	svc, ok := app.services[serviceType]
	if !ok {
		panic("service not found: " + serviceType.String())
	}
	return svc
}

func (app *application) Services() map[reflect.Type]interface{} {
	return app.services
}

func (app *application) RegisterSchema(fs *embed.FS) {
	app.schemas = append(app.schemas, fs)
}

func (app *application) Schemas() []*embed.FS {
	return app.schemas
}

// Load registers every module, failing on the first error.
func Load(app Application, modules ...Module) error {
	for _, module := range modules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
