package sparkle

import "reflect"

// Commands is handed to systems. Entity changes are queued and applied
// when the current stage ends.
type Commands struct {
	app *App
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

func (cmd *Commands) UseSystem(system systemScheduleBuilder) *Commands {
	cmd.app.UseSystem(system)
	return cmd
}

func (cmd *Commands) Logger() Logger {
	return cmd.app.Logger()
}

func (cmd *Commands) AddEntity(components ...any) EntityId {
	eid := cmd.app.ecs.nextEntityId()
	cmd.app.pendingAdditions = append(cmd.app.pendingAdditions, pendingAdd{
		eid:        eid,
		components: components,
	})
	return eid
}

func (cmd *Commands) AddComponents(entityId EntityId, components ...any) {
	cmd.app.pendingCompAdds = append(cmd.app.pendingCompAdds, pendingComps{
		eid:        entityId,
		components: components,
	})
}

func (cmd *Commands) RemoveComponents(entityId EntityId, components ...any) {
	cmd.app.pendingCompRemovals = append(cmd.app.pendingCompRemovals, pendingComps{
		eid:        entityId,
		components: components,
	})
}

func (cmd *Commands) RemoveEntity(entityId EntityId) {
	cmd.app.pendingRemovals = append(cmd.app.pendingRemovals, entityId)
}

// HasEntity reports whether the entity exists now, ignoring queued changes.
func (cmd *Commands) HasEntity(entityId EntityId) bool {
	return cmd.app.ecs.hasEntity(entityId)
}

func (cmd *Commands) GetAllComponents(entityId EntityId) []any {
	arch, r, ok := cmd.app.ecs.locate(entityId)
	if !ok {
		return nil
	}
	var res []any
	for _, cid := range arch.key {
		res = append(res, columnAt(arch.componentData[cid], r).Interface())
	}
	return res
}

// Component returns a pointer to the entity's component of type T.
func Component[T any](cmd *Commands, entityId EntityId) (*T, bool) {
	v := cmd.app.ecs.component(entityId, reflect.TypeFor[T]())
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface().(*T), true
}
