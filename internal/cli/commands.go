package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexfrei/go-fpp"
	"github.com/lexfrei/go-fpp/discovery"
	"github.com/lexfrei/go-fpp/fpperr"
	"github.com/lexfrei/go-fpp/internal/version"
)

func (a *app) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show device information and what it is playing",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				info, err := c.SystemInfo(cmd.Context())
				if err != nil {
					return err
				}
				device, err := c.Update(cmd.Context())
				if err != nil {
					return err
				}

				out := struct {
					*fpp.SystemInfo
					*fpp.Device
				}{info, device}

				return a.output(out, func() {
					statusStyle := a.styles.statusStyle(device.Status.StatusName)
					a.printFields([]field{
						kv("Host", info.HostName),
						kv("Description", info.HostDescription),
						kv("Platform", strings.TrimSpace(info.Platform+" "+info.Variant)),
						kv("Mode", info.Mode),
						kv("Version", info.VersionString()),
						kv("Branch", info.Branch),
						kv("OS", info.OSVersion),
						kv("Uptime", info.Utilization.Uptime),
						kv("CPU", strconv.FormatFloat(info.Utilization.CPU, 'f', 1, 64)+"%"),
						kv("Memory", strconv.FormatFloat(info.Utilization.Memory, 'f', 1, 64)+"%"),
						kv("Addresses", strings.Join(info.IPs, ", ")),
						{key: "Status", value: device.Status.StatusName, style: &statusStyle},
						kv("Playlist", device.Status.CurrentPlaylist.Playlist),
						kv("Playlists", strconv.Itoa(len(device.Playlists))),
						kv("Sequences", strconv.Itoa(len(device.Sequences))),
					})
				})
			})
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what the device is playing",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				status, err := c.SystemStatus(cmd.Context())
				if err != nil {
					return err
				}
				return a.output(status, func() {
					statusStyle := a.styles.statusStyle(status.StatusName)
					fields := []field{
						{key: "Status", value: status.StatusName, style: &statusStyle},
						kv("Mode", status.ModeName),
						kv("Playlist", status.CurrentPlaylist.Playlist),
						kv("Entry", entryOf(status.CurrentPlaylist)),
						kv("Sequence", status.CurrentSequence),
						kv("Media", status.CurrentSong),
						kv("Elapsed", seconds(status.SecondsPlayed.Int())),
						kv("Remaining", seconds(status.SecondsRemaining.Int())),
						kv("Volume", strconv.Itoa(status.Volume.Int())),
						kv("Next", strings.TrimSpace(status.NextPlaylist.Playlist+" "+status.NextPlaylist.StartTime)),
					}
					if status.Scheduler != nil {
						fields = append(fields, kv("Scheduler", status.Scheduler.Status))
					}
					a.printFields(fields)
				})
			})
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the firmware version and the features it supports",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				v, err := c.Version(cmd.Context())
				if err != nil {
					return err
				}

				features := make(map[string]bool)
				rows := make([][]string, 0, len(fpp.Features()))
				for _, f := range fpp.Features() {
					ok, err := c.Supports(cmd.Context(), f)
					if err != nil {
						return err
					}
					features[string(f)] = ok

					required, _ := version.Requirement(f)
					rows = append(rows, []string{string(f), required.String(), yesNo(ok)})
				}

				out := struct {
					Version  string          `json:"version"`
					Features map[string]bool `json:"features"`
				}{Version: v.String(), Features: features}

				return a.output(out, func() {
					a.printFields([]field{kv("Firmware", v.String())})
					a.printTable([]string{"Feature", "Requires", "Supported"}, rows)
				})
			})
		},
	}
}

func (a *app) playlistsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "playlists",
		Short: "List playlists",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				names, err := c.Playlists(cmd.Context())
				if err != nil {
					return err
				}
				return a.output(names, func() { a.printList(names) })
			})
		},
	}
}

func (a *app) sequencesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sequences",
		Short: "List sequences",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				names, err := c.Sequences(cmd.Context())
				if err != nil {
					return err
				}
				return a.output(names, func() { a.printList(names) })
			})
		},
	}
}

func (a *app) playlistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Inspect and control playlists",
	}

	var (
		item     int
		repeat   bool
		graceful bool
	)

	start := &cobra.Command{
		Use:   "start NAME",
		Short: "Start a playlist",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				res, err := c.StartPlaylist(cmd.Context(), args[0], fpp.StartOptions{Item: item, Repeat: repeat})
				return a.result(res, err)
			})
		},
	}
	start.Flags().IntVar(&item, "item", 0, "1-based entry to start at")
	start.Flags().BoolVar(&repeat, "repeat", false, "Repeat until stopped")

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running playlist",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				res, err := c.StopPlaylist(cmd.Context(), graceful)
				return a.result(res, err)
			})
		},
	}
	stop.Flags().BoolVarP(&graceful, "graceful", "g", false, "Finish the current entry first")

	pause := &cobra.Command{
		Use:   "pause",
		Short: "Pause the running playlist",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				res, err := c.PausePlaylist(cmd.Context())
				return a.result(res, err)
			})
		},
	}

	resume := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused playlist",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				res, err := c.ResumePlaylist(cmd.Context())
				return a.result(res, err)
			})
		},
	}

	show := &cobra.Command{
		Use:   "show NAME",
		Short: "Show the entries of a playlist",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				pl, err := c.Playlist(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.output(pl, func() {
					a.printFields([]field{
						kv("Name", pl.Name),
						kv("Description", pl.Desc),
						kv("Repeat", yesNo(pl.Repeat != 0)),
					})
					a.printTable([]string{"#", "Section", "Type", "Name", "Duration"}, playlistRows(pl))
				})
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the running playlist",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				ps, err := c.PlaylistStatus(cmd.Context())
				if err != nil {
					return err
				}
				return a.output(ps, func() {
					statusStyle := a.styles.statusStyle(ps.StatusName)
					a.printFields([]field{
						{key: "Status", value: ps.StatusName, style: &statusStyle},
						kv("Playlist", ps.Current.Playlist),
						kv("Entry", entryOf(ps.Current)),
						kv("Sequence", ps.CurrentSequence),
						kv("Elapsed", seconds(ps.SecondsPlayed)),
						kv("Remaining", seconds(ps.SecondsRemaining)),
					})
				})
			})
		},
	}

	cmd.AddCommand(start, stop, pause, resume, show, status)
	return cmd
}

func (a *app) scheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect and reload the scheduler",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "List schedule entries",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				schedule, err := c.Schedule(cmd.Context())
				if err != nil {
					return err
				}
				return a.output(schedule, func() {
					rows := make([][]string, 0, len(schedule))
					for _, e := range schedule {
						rows = append(rows, []string{
							yesNo(e.Enabled != 0),
							e.Playlist,
							strconv.Itoa(e.Day.Int()),
							e.StartTime,
							e.EndTime,
							strings.TrimSpace(e.StartDate + " " + e.EndDate),
							yesNo(e.Repeat != 0),
						})
					}
					a.printTable([]string{"Enabled", "Playlist", "Day", "Start", "End", "Dates", "Repeat"}, rows)
				})
			})
		},
	}

	reload := &cobra.Command{
		Use:   "reload",
		Short: "Make fppd re-read the schedule",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				res, err := c.ReloadSchedule(cmd.Context())
				return a.result(res, err)
			})
		},
	}

	cmd.AddCommand(show, reload)
	return cmd
}

func (a *app) settingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setting",
		Short: "Read and change device settings",
	}

	get := &cobra.Command{
		Use:   "get NAME",
		Short: "Print a setting",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				setting, err := c.Setting(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.output(setting, func() {
					fmt.Fprintln(a.stdout, string(setting.Value))
				})
			})
		},
	}

	set := &cobra.Command{
		Use:   "set NAME VALUE",
		Short: "Change a setting",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				res, err := c.SetSetting(cmd.Context(), args[0], args[1])
				return a.result(res, err)
			})
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

func (a *app) volumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volume",
		Short: "Read and change the audio volume",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the volume",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				volume, err := c.Volume(cmd.Context())
				if err != nil {
					return err
				}
				return a.output(map[string]int{"volume": volume}, func() {
					fmt.Fprintln(a.stdout, volume)
				})
			})
		},
	}

	set := &cobra.Command{
		Use:   "set LEVEL",
		Short: "Set the volume (0-100)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(args[0])
			if err != nil {
				return &fpperr.ValidationError{Field: "volume", Msg: "not a number: " + args[0]}
			}
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				res, err := c.SetVolume(cmd.Context(), level)
				return a.result(res, err)
			})
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

func (a *app) commandCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "command NAME [ARG...]",
		Short: "Run an FPP command",
		Example: `  fppctl command "Volume Set" 50
  fppctl command "Start Playlist" Christmas true false`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				res, err := c.RunCommand(cmd.Context(), fpp.Command{Command: args[0], Args: args[1:]})
				return a.result(res, err)
			})
		},
	}
}

func (a *app) multisyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "multisync",
		Short: "List MultiSync peers known to the device",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c fpp.DeviceAPIClient) error {
				systems, err := c.MultiSyncSystems(cmd.Context())
				if err != nil {
					return err
				}
				return a.output(systems, func() {
					rows := make([][]string, 0, len(systems))
					for _, s := range systems {
						rows = append(rows, []string{s.HostName, s.Address, s.FPPModeString, s.Version, s.Platform})
					}
					a.printTable([]string{"Host", "Address", "Mode", "Version", "Platform"}, rows)
				})
			})
		},
	}
}

func (a *app) scanCommand() *cobra.Command {
	var (
		timeout time.Duration
		iface   string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Find FPP devices on the local network",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			found, err := a.scan(cmd.Context(), discovery.Config{
				Interface: iface,
				Timeout:   timeout,
				Logger:    a.logger(logLevel(a.opts.verbose)),
			})
			if err != nil {
				return err
			}

			return a.output(found, func() {
				rows := make([][]string, 0, len(found))
				for _, c := range found {
					rows = append(rows, []string{c.Instance, strings.TrimSuffix(c.HostName, "."), strings.Join(c.Addresses, ", ")})
				}
				a.printTable([]string{"Instance", "Host", "Addresses"}, rows)
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "scan-timeout", discovery.DefaultTimeout, "How long to listen for announcements")
	cmd.Flags().StringVar(&iface, "interface", "", "Network interface to browse on")

	return cmd
}

// result prints the outcome of a write.
func (a *app) result(res *fpp.Result, err error) error {
	if err != nil {
		return err
	}
	if res == nil {
		res = &fpp.Result{}
	}
	return a.output(res, func() {
		msg := res.Message
		if msg == "" {
			msg = res.Status
		}
		if msg == "" {
			msg = "OK"
		}
		fmt.Fprintln(a.stdout, a.styles.success.Render(msg))
	})
}

func playlistRows(pl *fpp.Playlist) [][]string {
	var rows [][]string
	sections := []struct {
		name  string
		items []fpp.PlaylistItem
	}{
		{"lead-in", pl.LeadIn},
		{"main", pl.MainPlaylist},
		{"lead-out", pl.LeadOut},
	}
	for _, section := range sections {
		for _, item := range section.items {
			name := item.SequenceName
			if name == "" {
				name = item.MediaName
			}
			rows = append(rows, []string{
				strconv.Itoa(len(rows) + 1),
				section.name,
				item.Type,
				name,
				seconds(int(item.Duration)),
			})
		}
	}
	return rows
}

func entryOf(p fpp.CurrentPlaylist) string {
	if p.Count == 0 {
		return ""
	}
	return strconv.Itoa(p.Index.Int()) + "/" + strconv.Itoa(p.Count.Int())
}

func seconds(n int) string {
	return (time.Duration(n) * time.Second).String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func logLevel(verbose bool) string {
	if verbose {
		return "debug"
	}
	return ""
}
