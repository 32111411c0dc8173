package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	cli "github.com/jawher/mow.cli"
	log "github.com/sirupsen/logrus"

	"github.com/seantis/ocitool/pkg/layout"
	"github.com/seantis/ocitool/pkg/load"
	"github.com/seantis/ocitool/pkg/logging"
	_ "github.com/seantis/ocitool/pkg/provider" // to register runtimes
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := cli.App("ocitool", "Assemble and load OCI image layouts")
	app.Version("v version", fmt.Sprintf("ocitool %s", version))

	ctx := newInterruptableContext()

	var (
		level = app.String(cli.StringOpt{
			Name:   "log-level",
			Value:  "info",
			EnvVar: "OCITOOL_LOG_LEVEL",
			Desc:   fmt.Sprintf("Log level, one of: %s", strings.Join(logging.Levels, ", ")),
		})
		file = app.String(cli.StringOpt{
			Name:   "log-file",
			EnvVar: "OCITOOL_LOG_FILE",
			Desc:   "Append the log to this file instead of writing it to stderr",
		})
	)

	app.Before = func() {
		if err := logging.Configure(*level, *file); err != nil {
			log.Fatalf("error configuring logging: %v", err)
		}
	}

	app.Command("version", "Show version", func(cmd *cli.Cmd) {
		cmd.Action = func() {
			fmt.Printf("ocitool %s, commit %s, built at %s\n", version, commit, date)
		}
	})

	app.Command("build-layout", "Build an OCI layout directory from a descriptor and its blobs", func(cmd *cli.Cmd) {
		cmd.Spec = "--descriptor-path --out-dir --out-platforms-path [--file]... [--verify-digests] [--lock]"

		var (
			descriptor = cmd.StringOpt("descriptor-path", "",
				`Path to the JSON descriptor of the image index or manifest`)
			out       = newOutDirOpt(cmd)
			platforms = cmd.StringOpt("out-platforms-path", "",
				`Where to write the platform of each manifest, as JSON`)
			files = cmd.StringsOpt("file", nil,
				`A file that may be referenced by the descriptor, either named
               after its digest (.../sha256/<hex>) or named arbitrarily, in
               which case it is hashed. May be given multiple times.`)
			verify = newVerifyOpt(cmd)
			lock   = newLockOpt(cmd)
		)

		cmd.Action = func() {
			err := layout.BuildLayout(layout.Options{
				DescriptorPath: *descriptor,
				Files:          *files,
				OutDir:         *out,
				PlatformsPath:  *platforms,
				VerifyDigests:  *verify,
				Lock:           *lock,
			})

			if err != nil {
				log.Fatalf("error building layout: %v", err)
			}
		}
	})

	app.Command("load-layout", "Load a layout into a container runtime and tag it", func(cmd *cli.Cmd) {
		cmd.Spec = "--platforms-path --repository (--tar-path | --layout-dir) [--runtime]"

		var (
			platforms = cmd.StringOpt("platforms-path", "",
				`Path to the platforms written by build-layout`)
			repository = cmd.StringOpt("repository", "",
				`The repository to tag the images with, e.g. "org/app"`)
			tar = cmd.StringOpt("tar-path", "",
				`Path to a tar of the layout, see pack-layout`)
			dir     = newLayoutDirOpt(cmd)
			runtime = newRuntimeOpt(cmd)
		)

		cmd.Action = func() {
			err := load.Load(ctx, load.Options{
				PlatformsPath: *platforms,
				Repository:    *repository,
				TarPath:       *tar,
				LayoutDir:     *dir,
				Runtime:       *runtime,
			})

			if err != nil {
				log.Fatalf("error loading layout: %v", err)
			}
		}
	})

	app.Command("pack-layout", "Write a layout directory to a reproducible tar", func(cmd *cli.Cmd) {
		cmd.Spec = "--layout-dir --out"

		var (
			dir = newLayoutDirOpt(cmd)
			out = cmd.StringOpt("out", "", `Path of the tar to write`)
		)

		cmd.Action = func() {
			if err := packLayout(ctx, *dir, *out); err != nil {
				log.Fatalf("error packing layout: %v", err)
			}
		}
	})

	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("error running command: %v", err)
	}
}

func packLayout(ctx context.Context, dir, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)

	if err := layout.Pack(ctx, dir, w); err != nil {
		f.Close()
		os.Remove(out)
		return err
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	log.Infof("packed %s into %s", dir, out)
	return nil
}

func newInterruptableContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		signal.Stop(c)
		cancel()
	}()

	return ctx
}

func newOutDirOpt(cmd *cli.Cmd) *string {
	return cmd.StringOpt("out-dir", "",
		`The layout directory to write, created if missing. Blobs that
               exist already are kept as they are.`)
}

func newLayoutDirOpt(cmd *cli.Cmd) *string {
	return cmd.StringOpt("layout-dir", "", "A layout directory written by build-layout")
}

func newVerifyOpt(cmd *cli.Cmd) *bool {
	return cmd.Bool(cli.BoolOpt{
		Name:   "verify-digests",
		EnvVar: "OCITOOL_VERIFY_DIGESTS",
		Desc: `Hash every file, even if it is named after its digest

               This value can also be set through the env var
               OCITOOL_VERIFY_DIGESTS, though the flag takes precedence.`,
	})
}

func newLockOpt(cmd *cli.Cmd) *bool {
	return cmd.Bool(cli.BoolOpt{
		Name:   "lock",
		EnvVar: "OCITOOL_LOCK",
		Desc: `Hold <out-dir>.lock while building, for builds that share
               an output directory.

               This value can also be set through the env var OCITOOL_LOCK,
               though the flag takes precedence.`,
	})
}

func newRuntimeOpt(cmd *cli.Cmd) *string {
	return cmd.String(cli.StringOpt{
		Name:   "runtime",
		EnvVar: "OCITOOL_RUNTIME",
		Desc: `The runtime to load the images into:

               * docker: the docker cli
               * podman: the podman cli
               * engine: the Docker Engine API at DOCKER_HOST

               Defaults to the first one available. This value can also be
               set through the env var OCITOOL_RUNTIME, though the flag takes
               precedence.`,
	})
}
