package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/sparkle"
	"github.com/gekko3d/sparkle/config"
	"github.com/gekko3d/sparkle/meshmap/core"
	"github.com/gekko3d/sparkle/meshmap/export"
	"github.com/gekko3d/sparkle/meshmap/gpu"
)

const frameInterval = 16 * time.Millisecond

func planReport(n int, gpuAligned bool) (string, error) {
	plan, err := core.NewPlan(n, gpuAligned)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Vertices:  %d\n", plan.VertexCount)
	fmt.Fprintf(&b, "Width:     %d\n", plan.Width)
	fmt.Fprintf(&b, "Texels:    %d\n", plan.Slots())
	if gpuAligned {
		x, y := plan.Workgroups()
		fmt.Fprintf(&b, "Workgroups: %dx%d\n", x, y)
		if t := plan.Truncated(); t > 0 {
			fmt.Fprintf(&b, "Truncated: %d vertices never sampled\n", t)
		}
	}
	return b.String(), nil
}

func meshInfo(w io.Writer, path string) error {
	data, err := sparkle.LoadOBJ(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Mesh:      %s\n", path)
	fmt.Fprintf(w, "Vertices:  %d\n", len(data.Positions))
	fmt.Fprintf(w, "Normals:   %d\n", len(data.Normals))
	fmt.Fprintf(w, "UVs:       %d\n", len(data.UVs))
	fmt.Fprintf(w, "Triangles: %d\n", len(data.Indices)/3)

	attrs := []struct {
		kind  core.AttributeKind
		count int
	}{
		{core.AttributePosition, len(data.Positions)},
		{core.AttributeNormal, len(data.Normals)},
		{core.AttributeUV, len(data.UVs)},
	}
	fmt.Fprintln(w)
	for _, a := range attrs {
		if plan, err := core.NewPlan(a.count, false); err == nil {
			fmt.Fprintf(w, "  %-9s %dx%d\n", a.kind, plan.Width, plan.Width)
		} else {
			fmt.Fprintf(w, "  %-9s %v\n", a.kind, err)
		}
	}
	if plan, err := core.NewPlan(len(data.Positions), true); err == nil {
		fmt.Fprintf(w, "  %-9s %dx%d (gpu, %d truncated)\n", "position", plan.Width, plan.Width, plan.Truncated())
	} else {
		fmt.Fprintf(w, "  %-9s gpu: %v\n", "position", err)
	}
	return nil
}

func baseModules(cfg *config.Config) []sparkle.Module {
	modules := []sparkle.Module{
		sparkle.LoggingModule{Prefix: "sparklebake", Level: cfg.Logging.Level, File: cfg.Logging.LogFile},
		sparkle.TimeModule{},
		sparkle.AssetServerModule{},
	}
	if cfg.Bake.GPU {
		modules = append(modules, sparkle.GpuModule{PowerPreference: cfg.Bake.PowerPreference, Optional: true})
	}
	return append(modules, sparkle.SparkleModule{GPU: cfg.Bake.GPU})
}

// spawnEffect loads the mesh and adds one static effect for it.
func spawnEffect(app *sparkle.App, path string) (sparkle.EntityId, sparkle.AssetId, error) {
	assets, _ := sparkle.Resource[sparkle.AssetServer](app)
	mesh, err := assets.LoadMesh(path)
	if err != nil {
		return 0, "", err
	}
	cmd := app.Commands()
	eid := cmd.AddEntity(sparkle.MeshSparklyEffectComponent{Mesh: mesh, VFX: sparkle.DefaultSparkleVFX()})
	app.FlushCommands()
	return eid, mesh, nil
}

func meshName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func runBake(path string, cfg *config.Config) ([]string, error) {
	app := sparkle.NewAppBuilder().UseModules(baseModules(cfg)...).Build()
	defer app.Shutdown()

	eid, meshId, err := spawnEffect(app, path)
	if err != nil {
		return nil, err
	}
	app.Step()

	fx, _ := sparkle.Component[sparkle.MeshSparklyEffectComponent](app.Commands(), eid)
	maps := fx.Maps()
	if !maps.Complete() {
		return nil, fmt.Errorf("bake %s failed, see log", path)
	}
	name := meshName(path)
	files, err := export.WriteMaps(cfg.Export.Dir, name, maps)
	if err != nil {
		return nil, err
	}

	if state, ok := sparkle.Resource[sparkle.GpuState](app); ok {
		assets, _ := sparkle.Resource[sparkle.AssetServer](app)
		mesh, _ := assets.Mesh(meshId)
		f, err := bakeOnDevice(app.Logger(), state, mesh.Positions(), cfg.Export.Dir, name)
		switch {
		case errors.Is(err, core.ErrGPUWidthZero):
			app.Logger().Infof("gpu bake skipped: %v", err)
		case err != nil:
			return files, err
		default:
			files = append(files, f)
		}
	}
	return files, nil
}

// bakeOnDevice runs the compute bake for positions and writes the read
// back map next to the CPU ones.
func bakeOnDevice(log sparkle.Logger, state *sparkle.GpuState, positions []mgl32.Vec3, dir, name string) (string, error) {
	baker, err := gpu.NewPositionBaker(state.Device, gpu.WithLogger(log), gpu.WithLabel(name))
	if err != nil {
		return "", err
	}
	defer baker.Release()

	if err := baker.Bake(positions); err != nil {
		return "", err
	}
	m, err := baker.Readback()
	if err != nil {
		return "", err
	}
	file := filepath.Join(dir, name+"_position_gpu.tiff")
	if _, err := export.WriteTIFF(file, m); err != nil {
		return "", err
	}
	return file, nil
}

// runWatch rebakes and exports every time the effect's maps change until
// ctx is cancelled.
func runWatch(ctx context.Context, path string, cfg *config.Config) error {
	modules := append(baseModules(cfg), sparkle.AssetWatchModule{Debounce: cfg.Watch.Debounce})
	app := sparkle.NewAppBuilder().UseModules(modules...).Build()

	_, _, err := spawnEffect(app, path)
	if err != nil {
		app.Shutdown()
		return err
	}

	name := meshName(path)
	var last *core.Map
	exportSystem := func(cmd *sparkle.Commands) {
		sparkle.MakeQuery1[sparkle.MeshSparklyEffectComponent](cmd).Map(func(eid sparkle.EntityId, fx *sparkle.MeshSparklyEffectComponent) bool {
			maps := fx.Maps()
			if !maps.Complete() || maps.Position == last {
				return true
			}
			last = maps.Position
			files, err := export.WriteMaps(cfg.Export.Dir, name, maps)
			if err != nil {
				cmd.Logger().Errorf("export: %v", err)
				return true
			}
			cmd.Logger().Infof("exported %d files to %s", len(files), cfg.Export.Dir)
			return true
		})
	}
	app.UseSystem(sparkle.System(exportSystem).InStage(sparkle.PostUpdate))
	app.UseSystem(sparkle.System(func() { time.Sleep(frameInterval) }).InStage(sparkle.Finale))

	app.Logger().Infof("watching %s, ctrl-c to stop", path)
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runPreview simulates frames at a fixed 60 Hz step and summarizes the
// live particles.
func runPreview(path string, cfg *config.Config, frames int) (string, error) {
	modules := []sparkle.Module{
		sparkle.LoggingModule{Prefix: "sparklebake", Level: cfg.Logging.Level, File: cfg.Logging.LogFile},
		sparkle.TimeModule{FixedDt: time.Second / 60},
		sparkle.AssetServerModule{},
		sparkle.SparkleModule{},
		sparkle.SparkleParticlesModule{MaxParticles: cfg.Preview.MaxParticles, Seed: cfg.Preview.Seed},
	}
	app := sparkle.NewAppBuilder().UseModules(modules...).Build()

	eid, _, err := spawnEffect(app, path)
	if err != nil {
		app.Shutdown()
		return "", err
	}
	app.RunFrames(frames)

	particles, _ := sparkle.Resource[sparkle.SparkleParticles](app)
	instances := particles.Instances()

	var b strings.Builder
	fmt.Fprintf(&b, "Frames:    %d\n", frames)
	fmt.Fprintf(&b, "Particles: %d\n", particles.Alive(eid))
	if len(instances) > 0 {
		lo, hi := instances[0].Pos, instances[0].Pos
		for _, p := range instances[1:] {
			for i := 0; i < 3; i++ {
				lo[i] = min(lo[i], p.Pos[i])
				hi[i] = max(hi[i], p.Pos[i])
			}
		}
		fmt.Fprintf(&b, "Bounds:    (%.3f, %.3f, %.3f) - (%.3f, %.3f, %.3f)\n", lo[0], lo[1], lo[2], hi[0], hi[1], hi[2])
	}
	return b.String(), nil
}
