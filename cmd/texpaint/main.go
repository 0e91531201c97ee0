/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"texpaint/internal/canvas"
	"texpaint/internal/config"
	"texpaint/internal/crash"
	applog "texpaint/internal/log"
	"texpaint/internal/storage"
	"texpaint/internal/telemetry"
	"texpaint/internal/version"
)

// errUsage makes main print the usage text and exit with status 2.
var errUsage = errors.New("usage")

func usageErr(format string, a ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, a...))
}

// current is what a crash autosaves. Commands set it once they hold a canvas.
var current struct {
	ws  *storage.Workspace
	tex *canvas.Canvas
}

func track(ws *storage.Workspace, tex *canvas.Canvas) {
	current.ws, current.tex = ws, tex
}

func usage() {
	fmt.Println("texpaint - brush painting on texture canvases")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  texpaint version|-v|--version                        Show version")
	fmt.Println("  texpaint init [-size N -wrap W -filter F] <dir> [name] Create a workspace")
	fmt.Println("  texpaint replay [-record] <script.json> <out.png> [<workspace>]")
	fmt.Println("                                                       Run an event script and write the result")
	fmt.Println("  texpaint export [-scale N -tiles N] <workspace> <out.png|out.pdf>")
	fmt.Println("  texpaint export -preset web|print <workspace>        Batch export into exports/")
	fmt.Println("  texpaint tensor <image.png>                          Print the 28x28 digit tensor")
	fmt.Println("  texpaint serve [-addr A -advertise] <workspace>      Live view with websocket painting")
	fmt.Println("  texpaint discover [-timeout D]                       Find live views on the LAN (mDNS)")
	fmt.Println("  texpaint journal list <workspace>                    List recorded sessions")
	fmt.Println("  texpaint journal resume <workspace> [session]        Rebuild canvas.png from the journal")
	fmt.Println("  texpaint journal script <workspace> <session> <out.json>")
	fmt.Println("                                                       Export a session as an event script")
	fmt.Println("  texpaint scripts pack <workspace> <out.zip>          Zip the workspace event scripts")
	fmt.Println("  texpaint scripts install <workspace> <pack.zip>      Add scripts from a pack")
	fmt.Println("  texpaint publish <workspace> <title>                 Publish canvas.png to the gallery")
	fmt.Println("  texpaint gallery list|serve [-addr A]                Browse or serve the gallery")
	fmt.Println("  texpaint ui [<workspace>]                            Launch desktop UI (build with -tags fyne)")
}

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	defer func() {
		if r := recover(); r != nil {
			crash.Handle(current.ws, current.tex, r)
		}
	}()
	defer telemetry.Shutdown()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	cmd, rest := args[1], args[2:]
	switch cmd {
	case "version", "--version", "-v":
		fmt.Println("texpaint")
		fmt.Println(version.String())
		return
	case "help", "-h", "--help":
		usage()
		return
	case "ui":
		// the UI sets up its own logging, config and crash handling
		var dir string
		if len(rest) > 0 {
			dir = rest[0]
		}
		exit(l, cmd, runUI(dir))
		return
	}

	cfg, pw, err := config.Load()
	if err != nil {
		l.Warn("config not usable, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	applog.Init(cfg.LogOptions())
	l = applog.WithComponent("cli")

	var cerr error
	switch cmd {
	case "init":
		cerr = cmdInit(cfg, rest)
	case "replay":
		cerr = cmdReplay(cfg, rest)
	case "export":
		cerr = cmdExport(rest)
	case "tensor":
		cerr = cmdTensor(rest)
	case "serve":
		cerr = cmdServe(cfg, rest)
	case "discover":
		cerr = cmdDiscover(rest)
	case "journal":
		cerr = cmdJournal(rest)
	case "scripts":
		cerr = cmdScripts(rest)
	case "publish":
		cerr = cmdPublish(cfg, pw, rest)
	case "gallery":
		cerr = cmdGallery(cfg, pw, rest)
	default:
		cerr = usageErr("unknown command %q", cmd)
	}
	exit(l, cmd, cerr)
}

func exit(l *slog.Logger, cmd string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, errUsage) {
		fmt.Println(err)
		usage()
		telemetry.Shutdown()
		os.Exit(2)
	}
	l.Error("command failed", slog.String("cmd", cmd), slog.Any("err", err))
	fmt.Println("Error:", err)
	telemetry.Shutdown()
	os.Exit(1)
}
