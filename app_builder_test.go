package sparkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type MockModule struct {
	installed bool
}

func (m *MockModule) Install(app *App, commands *Commands) {
	m.installed = true
}

type spawnModule struct{}

type spawned struct{}

func (spawnModule) Install(app *App, cmd *Commands) {
	cmd.AddEntity(spawned{})
}

func TestAppBuilder_UseModules(t *testing.T) {
	builder := NewAppBuilder()
	builder.UseModules(&MockModule{}, &MockModule{})

	if len(builder.modules) != 2 {
		t.Errorf("Expected modules to contain 2 modules, got %v", len(builder.modules))
	}
}

func TestAppBuilder_Build_WithModules(t *testing.T) {
	module1 := &MockModule{}
	module2 := &MockModule{}

	NewAppBuilder().UseModules(module1).UseModules(module2).Build()

	if !module1.installed {
		t.Errorf("Expected Install to be called on the module 1, but it was not")
	}
	if !module2.installed {
		t.Errorf("Expected Install to be called on the module 2, but it was not")
	}
}

func TestAppBuilder_Build_FlushesInstallCommands(t *testing.T) {
	app := NewAppBuilder().UseModules(spawnModule{}).Build()
	assert.Equal(t, 1, app.ecs.entityCount())
}
