// rtrace prints traces of the code objects in an image.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/rcode/atom"
	"github.com/chazu/rcode/image"
	"github.com/chazu/rcode/manifest"
	"github.com/chazu/rcode/opcodes"
	"github.com/chazu/rcode/rcode"
)

var log = commonlog.GetLogger("rcode.rtrace")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	config    string
	store     string
	imageFile string
	id        string
	importing string
	list      bool
	oid       int64
	watch     time.Duration
	verbosity int
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("rtrace", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.config, "config", "", "Path to rcode.toml (default: search upwards from the working directory)")
	fs.StringVar(&o.store, "store", "", "Image store database (overrides [image] store)")
	fs.StringVar(&o.imageFile, "image", "", "Trace the CBOR image in this file")
	fs.StringVar(&o.id, "id", "", "Trace the stored image with this id")
	fs.StringVar(&o.importing, "import", "", "Import a CBOR image file into the store and print its id")
	fs.BoolVar(&o.list, "list", false, "List stored images")
	fs.Int64Var(&o.oid, "oid", -1, "Only trace objects with this OID")
	fs.DurationVar(&o.watch, "watch", 0, "With -image: poll the file at this interval and trace it again when it changes")
	fs.IntVar(&o.verbosity, "v", 0, "Log verbosity (higher logs more)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: rtrace [options]\n\n")
		fmt.Fprintf(stderr, "Prints traces of the code objects in an image.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  rtrace -image prog.cbor           # Trace every object in a file\n")
		fmt.Fprintf(stderr, "  rtrace -image prog.cbor -oid 12   # Trace one object\n")
		fmt.Fprintf(stderr, "  rtrace -image prog.cbor -watch 1s # Trace again on every change\n")
		fmt.Fprintf(stderr, "  rtrace -import prog.cbor          # Store an image\n")
		fmt.Fprintf(stderr, "  rtrace -list                      # List stored images\n")
		fmt.Fprintf(stderr, "  rtrace -id <id>                   # Trace a stored image\n")
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if o.watch < 0 || (o.watch > 0 && o.imageFile == "") {
		return nil, errors.New("-watch needs a positive interval and -image")
	}
	if o.oid > int64(^uint32(0)) {
		return nil, fmt.Errorf("-oid %d does not fit 32 bits", o.oid)
	}
	return &o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	commonlog.Configure(opts.verbosity, nil)

	m, err := loadManifest(opts.config)
	if err != nil {
		return err
	}
	if err := publishOpcodes(m); err != nil {
		return err
	}

	switch {
	case opts.list:
		return withStore(opts, m, func(s *image.Store) error { return listImages(s, stdout) })
	case opts.importing != "":
		return withStore(opts, m, func(s *image.Store) error { return importImage(s, opts.importing, stdout) })
	case opts.id != "":
		return withStore(opts, m, func(s *image.Store) error {
			img, err := s.Load(opts.id)
			if err != nil {
				return err
			}
			return traceImage(img, opts, m, stdout)
		})
	case opts.watch > 0:
		return watchImage(ctx, opts, m, stdout)
	case opts.imageFile != "":
		img, err := readImageFile(opts.imageFile)
		if err != nil {
			return err
		}
		return traceImage(img, opts, m, stdout)
	}
	return errors.New("nothing to do: give -image, -id, -import or -list")
}

func loadManifest(path string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return manifest.FindAndLoad(wd)
}

func publishOpcodes(m *manifest.Manifest) error {
	if m == nil || len(m.Opcodes) == 0 {
		return nil
	}
	names, err := m.OpcodeNames()
	if err != nil {
		return err
	}
	if err := opcodes.SetOpcodeNames(names); err != nil && !errors.Is(err, opcodes.ErrAlreadySet) {
		return err
	}
	return nil
}

func withStore(opts *options, m *manifest.Manifest, fn func(*image.Store) error) error {
	path := opts.store
	if path == "" {
		if m == nil {
			return errors.New("no image store: give -store or add [image] store to rcode.toml")
		}
		path = m.StorePath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	s, err := image.OpenStore(path)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func readImageFile(path string) (*image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	img, err := image.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if img.Name == "" {
		img.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return img, nil
}

func importImage(s *image.Store, path string, stdout io.Writer) error {
	img, err := readImageFile(path)
	if err != nil {
		return err
	}
	// Reject images whose references do not resolve before storing them.
	if _, err := image.Materialize(rcode.NewSpace(), img); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	id, err := s.Save(img)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, id)
	return nil
}

func listImages(s *image.Store, stdout io.Writer) error {
	entries, err := s.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(stdout, "%s\t%s\t%d objects\t%s\n",
			e.ID, e.Name, e.Objects, e.Created.UTC().Format(time.RFC3339))
	}
	return nil
}

// traceImage materializes img into a fresh space and writes the traces of
// its objects in image order.
func traceImage(img *image.Image, opts *options, m *manifest.Manifest, stdout io.Writer) error {
	_, err := traceInto(newSpace(m), img, opts, stdout)
	return err
}

func newSpace(m *manifest.Manifest) *rcode.Space {
	return rcode.NewSpace(rcode.WithDetailOIDs(m != nil && m.Trace.DetailOIDs))
}

// traceInto materializes img into space and writes the traces of its
// objects in image order. Traces are rendered concurrently. The
// materialized objects are returned even when some traces are malformed.
func traceInto(space *rcode.Space, img *image.Image, opts *options, stdout io.Writer) ([]*rcode.Object, error) {
	objs, err := image.Materialize(space, img)
	if err != nil {
		return nil, err
	}

	var selected []*rcode.Object
	for _, o := range objs {
		if opts.oid < 0 || int64(o.OID()) == opts.oid {
			selected = append(selected, o)
		}
	}
	if opts.oid >= 0 && len(selected) == 0 {
		return objs, fmt.Errorf("no object with OID %d in image %q", opts.oid, img.Name)
	}
	log.Infof("tracing %d of %d objects from %q", len(selected), len(objs), img.Name)

	dumps := make([]string, len(selected))
	malformed := make([]error, len(selected))
	var g errgroup.Group
	for i, o := range selected {
		i, o := i, o
		g.Go(func() error {
			dump, err := o.TraceString()
			dumps[i] = dump
			if errors.Is(err, atom.ErrMalformedSequence) {
				malformed[i] = err
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return objs, err
	}

	for _, d := range dumps {
		if _, err := io.WriteString(stdout, d); err != nil {
			return objs, err
		}
	}
	for _, err := range malformed {
		if err != nil {
			log.Warningf("%v", err)
		}
	}
	return objs, errors.Join(malformed...)
}

// watchImage traces the image file every time its modification time
// changes, until ctx is done. Each reload releases the previous generation
// of objects; a background collector reclaims them.
func watchImage(ctx context.Context, opts *options, m *manifest.Manifest, stdout io.Writer) error {
	space := newSpace(m)
	collector := rcode.NewCollector(space, opts.watch)
	collector.Start()
	defer collector.Stop()

	ticker := time.NewTicker(opts.watch)
	defer ticker.Stop()

	var seen time.Time
	var live []*rcode.Object
	for {
		info, err := os.Stat(opts.imageFile)
		switch {
		case err != nil:
			log.Warningf("%v", err)
		case !info.ModTime().Equal(seen):
			seen = info.ModTime()
			if objs, ok := reload(space, opts, stdout); ok {
				for _, o := range live {
					space.Release(o)
				}
				live = objs
			}
		}

		select {
		case <-ctx.Done():
			if stats := collector.LastStats(); stats != nil {
				log.Infof("%d collections, last kept %d objects", collector.SweepCount(), stats.Live)
			}
			return nil
		case <-ticker.C:
		}
	}
}

// reload reads and traces the image file once. It reports false when the
// file could not be read or materialized; the previous generation then
// stays live.
func reload(space *rcode.Space, opts *options, stdout io.Writer) ([]*rcode.Object, bool) {
	img, err := readImageFile(opts.imageFile)
	if err != nil {
		log.Warningf("%v", err)
		return nil, false
	}
	objs, err := traceInto(space, img, opts, stdout)
	if err != nil {
		log.Warningf("%v", err)
	}
	return objs, objs != nil
}
