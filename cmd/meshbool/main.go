// Command meshbool combines binary STL meshes with a boolean operation.
//
//	meshbool -op subtract -o out.stl a.stl b.stl
//
// Operands may be moved with repeated -t x,y,z flags, one per operand in
// order. Options not given as flags are read from the -config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/soypat/csg"
	"github.com/soypat/csg/internal/preview"
	"github.com/soypat/csg/mesh"
	"github.com/soypat/csg/polygon"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

type offsets []mgl64.Vec3

func (o *offsets) String() string { return fmt.Sprint(*o) }

func (o *offsets) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return fmt.Errorf("want x,y,z, got %q", s)
	}
	var v mgl64.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return err
		}
		v[i] = f
	}
	*o = append(*o, v)
	return nil
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	logger := log.New(stderr, "meshbool: ", 0)
	fs := flag.NewFlagSet("meshbool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "gcfg configuration file.")
		op         = fs.String("op", "", "Boolean operation: union, subtract or intersect.")
		mode       = fs.String("mode", "", "Processing mode: polygons, polygons2, marching-cubes or dual-contouring.")
		inRes      = fs.Int("in", 0, "Input resolution of the implicit modes.")
		outRes     = fs.Int("out", 0, "Output resolution of the implicit modes.")
		output     = fs.String("o", "out.stl", "Output STL file.")
		pngPath    = fs.String("png", "", "Write a preview of the result to this PNG file.")
		quiet      = fs.Bool("q", false, "Do not log progress.")
		moves      offsets
	)
	fs.Var(&moves, "t", "Translation x,y,z of the next operand. May be repeated.")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "usage: meshbool [flags] a.stl [b.stl ...]")
		fs.PrintDefaults()
		return 2
	}
	if len(moves) > fs.NArg() {
		logger.Printf("%d translations for %d operands", len(moves), fs.NArg())
		return 2
	}

	cfg := &csg.Config{}
	if *configPath != "" {
		var err error
		if cfg, err = csg.ReadConfig(*configPath); err != nil {
			logger.Print(err)
			return 1
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "op":
			cfg.Boolean.Operation = *op
		case "mode":
			cfg.Boolean.Mode = *mode
		case "in":
			cfg.Boolean.InputResolution = *inRes
		case "out":
			cfg.Boolean.OutputResolution = *outRes
		}
	})
	if err := cfg.CheckInit(); err != nil {
		logger.Print(err)
		return 1
	}
	opts := cfg.Options()
	opts.Logger = logger
	if !*quiet {
		last := -1
		opts.Progress = func(p float64, status string) {
			if pct := int(100 * p); pct/10 != last/10 {
				last = pct
				logger.Printf("%3d%% %s", pct, status)
			}
		}
	}

	items := make([]csg.Item, fs.NArg())
	for i, path := range fs.Args() {
		m, err := mesh.LoadSTL(path, polygon.Resolution)
		if err != nil {
			logger.Print(err)
			return 1
		}
		items[i] = csg.Item{Mesh: m}
		if i < len(moves) {
			items[i].Transform = mgl64.Translate3D(moves[i][0], moves[i][1], moves[i][2])
		}
	}

	result, err := csg.DoArray(ctx, items, cfg.Operation(), opts)
	if errors.Is(err, context.Canceled) {
		logger.Print("cancelled")
		return 130
	} else if err != nil {
		logger.Print(err)
		return 1
	}
	logger.Printf("%s: %d vertices, %d faces, volume %.6g", cfg.Operation(), len(result.Vertices), len(result.Faces), result.Volume())

	code := 0
	if err := mesh.SaveSTL(*output, result); err != nil {
		logger.Printf("could not save result: %v", err)
		code = 1
	}
	if *pngPath != "" {
		if err := preview.Save(*pngPath, result, preview.Isometric, 800, 600); err != nil {
			logger.Printf("could not save preview: %v", err)
			code = 1
		}
	}
	return code
}
