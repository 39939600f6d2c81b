// Package main is the entry point for the notesampler CLI
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/james-see/notesampler/pkg/api"
	"github.com/james-see/notesampler/pkg/config"
	"github.com/james-see/notesampler/pkg/logging"
	"github.com/james-see/notesampler/pkg/mapping"
	"github.com/james-see/notesampler/pkg/sound"
	"github.com/james-see/notesampler/pkg/sound/device"
	"github.com/james-see/notesampler/pkg/timeline"
	"github.com/james-see/notesampler/pkg/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath  string
	soundsDir   string
	mappingsDir string
	logLevel    string
	noAudio     bool
	outputFile  string
	jsonOutput  bool
	serverPort  int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "notesampler",
	Short: "Decode MIDI files and play notes from sample groups",
	Long: `notesampler decodes Standard MIDI Files into one time-ordered event
timeline, annotated with the instrument group active on each channel, and
plays individual notes from per-note WAV samples.

Examples:
  notesampler parse song.mid --json
  notesampler flatten song.mid -o flat.mid
  notesampler play 60
  notesampler mapping save drums 36=drum_kit
  notesampler tui
  notesampler serve --port 8080`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage: true,
}

var parseCmd = &cobra.Command{
	Use:   "parse <file.mid>",
	Short: "Decode a MIDI file and print its timeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var flattenCmd = &cobra.Command{
	Use:   "flatten <file.mid>",
	Short: "Re-encode the merged timeline as a single-track file",
	Args:  cobra.ExactArgs(1),
	RunE:  runFlatten,
}

var playCmd = &cobra.Command{
	Use:   "play <note>",
	Short: "Play the sample for a note",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List sound groups",
	RunE:  runGroups,
}

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Manage note to sound-group mappings",
}

var mappingSaveCmd = &cobra.Command{
	Use:   "save <name> [note=group...]",
	Short: "Assign notes to groups and save the mapping",
	Long: `Assigns each note=group pair and saves the result under name. When a
mapping with that name already exists it is loaded first, so pairs edit it
in place; otherwise unlisted notes stay on the default group.

Example:
  notesampler mapping save drums 36=drum_kit 38=drum_kit`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMappingSave,
}

var mappingLoadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "Load a saved mapping and print it",
	Args:  cobra.ExactArgs(1),
	RunE:  runMappingLoad,
}

var mappingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved mappings",
	RunE:  runMappingList,
}

var mappingResetCmd = &cobra.Command{
	Use:   "reset <name>",
	Short: "Save a mapping with every note on the default group",
	Args:  cobra.ExactArgs(1),
	RunE:  runMappingReset,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.config/notesampler/config.json)")
	rootCmd.PersistentFlags().StringVar(&soundsDir, "sounds", "", "Sound groups directory")
	rootCmd.PersistentFlags().StringVar(&mappingsDir, "mappings", "", "Saved mappings directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noAudio, "no-audio", false, "Disable the audio device")

	parseCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the timeline as JSON")

	flattenCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path")

	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")

	mappingCmd.AddCommand(mappingSaveCmd, mappingLoadCmd, mappingListCmd, mappingResetCmd)
	rootCmd.AddCommand(parseCmd, flattenCmd, playCmd, groupsCmd, mappingCmd, tuiCmd, serveCmd)
}

// app is the wiring shared by the subcommands.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	library *sound.Library
	store   *mapping.Store
	backend sound.Backend
}

func setup(withAudio bool) (*app, *sound.Manager, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if soundsDir != "" {
		cfg.Paths.SoundsDir = soundsDir
	}
	if mappingsDir != "" {
		cfg.Paths.MappingsDir = mappingsDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if noAudio {
		cfg.Audio.Enabled = false
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}

	lib := sound.NewLibrary(cfg.Paths.SoundsDir)
	a := &app{
		cfg:     cfg,
		log:     log,
		library: lib,
		store:   mapping.NewStore(cfg.Paths.MappingsDir, lib, lib.DefaultGroup(), log.Named("mapping")),
	}
	if !withAudio {
		return a, nil, nil
	}

	a.backend = sound.NewNullBackend(log)
	if cfg.Audio.Enabled {
		dev, err := device.NewEbitenBackend(cfg.Audio.SampleRate, log.Named("audio"))
		if err != nil {
			return nil, nil, err
		}
		a.backend = dev
	}
	return a, sound.NewManager(lib, a.store, a.backend, log.Named("sound")), nil
}

func runParse(cmd *cobra.Command, args []string) error {
	a, _, err := setup(false)
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()

	resolver, err := a.cfg.Resolver()
	if err != nil {
		return err
	}
	sess, err := timeline.Open(args[0], timeline.WithResolver(resolver), timeline.WithLogger(a.log))
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sess.Summary())
	}
	fmt.Fprint(cmd.OutOrStdout(), tui.RenderTimeline(sess.Summary()))
	return nil
}

func runFlatten(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := outputFile
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".flat.mid"
	}

	a, _, err := setup(false)
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()

	sess, err := timeline.Open(input, timeline.WithLogger(a.log))
	if err != nil {
		return err
	}
	if err := sess.WriteFile(output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Flattened %s -> %s (%d events)\n", input, output, len(sess.Events()))
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	note, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("note must be a number: %q", args[0])
	}

	a, player, err := setup(true)
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()
	defer func() { _ = player.Close() }()

	if err := player.PlayNote(note); err != nil {
		return err
	}
	group, _ := player.NoteGroup(note)
	fmt.Fprintf(cmd.OutOrStdout(), "Playing note %d from %s\n", note, group)

	// Keep the process alive until the sample has finished.
	if dev, ok := a.backend.(*device.EbitenBackend); ok {
		for dev.Playing() > 0 {
			time.Sleep(20 * time.Millisecond)
		}
	}
	return nil
}

func runGroups(cmd *cobra.Command, args []string) error {
	a, _, err := setup(false)
	if err != nil {
		return err
	}
	groups, err := a.library.Groups()
	if err != nil {
		return err
	}
	for _, g := range groups {
		marker := " "
		if g == a.store.DefaultGroup() {
			marker = "*"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, g)
	}
	return nil
}

func runMappingSave(cmd *cobra.Command, args []string) error {
	name := args[0]
	edits, err := mapping.ParseAssignments(args[1:])
	if err != nil {
		return err
	}

	a, _, err := setup(false)
	if err != nil {
		return err
	}
	if a.store.Exists(name) {
		if err := a.store.Load(name); err != nil {
			return err
		}
	}
	if err := a.store.Apply(edits); err != nil {
		return err
	}
	if err := a.store.Save(name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved mapping %s (%d notes changed)\n", name, len(edits))
	return nil
}

func runMappingLoad(cmd *cobra.Command, args []string) error {
	a, _, err := setup(false)
	if err != nil {
		return err
	}
	if err := a.store.Load(args[0]); err != nil {
		return err
	}

	byGroup := make(map[string][]int)
	for note, group := range a.store.Snapshot() {
		byGroup[group] = append(byGroup[group], note)
	}
	groups := make([]string, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		sort.Ints(byGroup[g])
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d notes %v\n", g, len(byGroup[g]), byGroup[g])
	}
	return nil
}

func runMappingList(cmd *cobra.Command, args []string) error {
	a, _, err := setup(false)
	if err != nil {
		return err
	}
	names, err := a.store.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runMappingReset(cmd *cobra.Command, args []string) error {
	a, _, err := setup(false)
	if err != nil {
		return err
	}
	a.store.Reset()
	if err := a.store.Save(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reset mapping %s to %s\n", args[0], a.store.DefaultGroup())
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, _, err := setup(false)
	if err != nil {
		return err
	}
	resolver, err := a.cfg.Resolver()
	if err != nil {
		return err
	}
	return tui.Run(resolver)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, player, err := setup(true)
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()
	defer func() { _ = player.Close() }()

	if serverPort != 0 {
		a.cfg.Server.Port = serverPort
	}
	srv, err := api.NewServer(a.cfg, a.library, a.store, player, a.log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting API server on port %d...\n", a.cfg.Server.Port)
	return srv.StartServer(ctx)
}
