package sparkle

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"slices"
)

type systemFn any

// Module bundles resources and systems. Install runs once, from Build.
type Module interface {
	Install(app *App, cmd *Commands)
}

// Releaser is implemented by resources that own device or OS handles.
// App.Shutdown calls Release on each of them.
type Releaser interface {
	Release()
}

// App drives systems stage by stage on the calling goroutine. Structural
// changes requested through Commands are applied after each stage.
type App struct {
	stages    []Stage
	systems   map[string][]systemFn
	resources map[reflect.Type]any
	installed []reflect.Type
	ecs       *Ecs
	frame     uint64
	released  bool

	pendingAdditions    []pendingAdd
	pendingRemovals     []EntityId
	pendingCompAdds     []pendingComps
	pendingCompRemovals []pendingComps
}

type pendingAdd struct {
	eid        EntityId
	components []any
}

type pendingComps struct {
	eid        EntityId
	components []any
}

func newApp() *App {
	ecs := MakeEcs()
	app := &App{
		systems:   make(map[string][]systemFn),
		resources: make(map[reflect.Type]any),
		ecs:       &ecs,
	}
	for _, stage := range defaultStages {
		app.stages = append(app.stages, stage)
		app.systems[stage.Name] = nil
	}
	return app
}

func (app *App) Commands() *Commands {
	return &Commands{app: app}
}

// Frame is the number of completed Steps.
func (app *App) Frame() uint64 {
	return app.frame
}

// Step runs every stage once.
func (app *App) Step() {
	for _, stage := range app.stages {
		for _, system := range app.systems[stage.Name] {
			app.callSystem(system)
		}
		app.FlushCommands()
	}
	app.frame++
}

// Run steps until ctx is cancelled, then shuts the app down.
func (app *App) Run(ctx context.Context) error {
	defer app.Shutdown()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		app.Step()
	}
}

// RunFrames steps n times and shuts the app down.
func (app *App) RunFrames(n int) {
	defer app.Shutdown()
	for i := 0; i < n; i++ {
		app.Step()
	}
}

// Shutdown releases every Releaser resource once, newest first, so a
// resource is released before anything installed ahead of it.
func (app *App) Shutdown() {
	if app.released {
		return
	}
	app.released = true

	for _, t := range slices.Backward(app.installed) {
		if r, ok := app.resources[t].(Releaser); ok {
			app.Logger().Debugf("releasing %s", t)
			r.Release()
		}
	}
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("resource %s must be a pointer", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}
		app.resources[resourceType.Elem()] = resource
		app.installed = append(app.installed, resourceType.Elem())
	}
	return app
}

// Resource returns the resource of type *T.
func Resource[T any](app *App) (*T, bool) {
	r, ok := app.resources[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	return r.(*T), true
}

var typeOfCommands = reflect.TypeOf(Commands{})

// callSystem resolves each parameter of system to *Commands or to a
// registered resource and calls it.
func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())
	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		if argType.Kind() != reflect.Pointer {
			app.unresolved(systemValue, systemType, argType)
		}
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, ok := app.resources[underlyingType]; ok {
			args[i] = reflect.ValueOf(resource)
		} else {
			app.unresolved(systemValue, systemType, argType)
		}
	}
	systemValue.Call(args)
}

func (app *App) unresolved(systemValue reflect.Value, systemType, argType reflect.Type) {
	msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
		runtime.FuncForPC(systemValue.Pointer()).Name(),
		systemType,
		argType,
	)
	panic(msg)
}

func (app *App) FlushCommands() {
	if len(app.pendingAdditions) == 0 && len(app.pendingRemovals) == 0 &&
		len(app.pendingCompAdds) == 0 && len(app.pendingCompRemovals) == 0 {
		return
	}

	// removals first so nothing is added to a dead entity
	for _, eid := range app.pendingRemovals {
		app.ecs.removeEntity(eid)
	}
	app.pendingRemovals = app.pendingRemovals[:0]

	for _, add := range app.pendingAdditions {
		app.ecs.insertEntity(add.eid, add.components...)
	}
	app.pendingAdditions = app.pendingAdditions[:0]

	for _, add := range app.pendingCompAdds {
		app.ecs.addComponents(add.eid, add.components...)
	}
	app.pendingCompAdds = app.pendingCompAdds[:0]

	for _, rm := range app.pendingCompRemovals {
		app.ecs.removeComponents(rm.eid, rm.components...)
	}
	app.pendingCompRemovals = app.pendingCompRemovals[:0]
}
