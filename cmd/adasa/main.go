// Command adasa is the CLI client of spec section 6's external interface:
// a thin wrapper over pkg/client that talks to a running adasa-daemon over
// its control socket.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adasa/adasa/internal/control"
	"github.com/adasa/adasa/pkg/client"
)

var sockPath string

func main() {
	root := &cobra.Command{
		Use:   "adasa",
		Short: "control a running adasa supervisor",
	}
	root.PersistentFlags().StringVar(&sockPath, "socket", "/tmp/adasa.sock", "control socket path")

	root.AddCommand(startCmd(), stopCmd(), restartCmd(), listCmd(), logsCmd(), deleteCmd(), daemonCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "adasa:", err)
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	var name, cwd string
	var instances int
	var env []string

	cmd := &cobra.Command{
		Use:   "start <script> [-- args...]",
		Short: "start a new process (or a replica group)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script := args[0]
			extra := args[1:]
			if idx := cmd.ArgsLenAtDash(); idx >= 0 {
				extra = args[idx:]
			}
			envMap := map[string]string{}
			for _, kv := range env {
				for i := 0; i < len(kv); i++ {
					if kv[i] == '=' {
						envMap[kv[:i]] = kv[i+1:]
						break
					}
				}
			}
			res, err := client.New(sockPath).Start(control.StartParams{
				Script: script, Name: name, Instances: instances, Cwd: cwd, Env: envMap, Args: extra,
			})
			if err != nil {
				return err
			}
			fmt.Printf("started id=%d count=%d\n", res.ID, res.Count)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "process name")
	cmd.Flags().IntVar(&instances, "instances", 1, "number of replicas")
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory")
	cmd.Flags().StringArrayVar(&env, "env", nil, "environment variable KEY=VALUE (repeatable)")
	return cmd
}

func stopCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "stop <id>",
		Short: "stop a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return client.New(sockPath).Stop(control.StopParams{ID: id, Force: force})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "send SIGKILL immediately")
	return cmd
}

func restartCmd() *cobra.Command {
	var rolling bool
	cmd := &cobra.Command{
		Use:   "restart <id|name>",
		Short: "restart a process or replica group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.New(sockPath).Restart(control.RestartParams{Target: args[0], Rolling: rolling})
		},
	}
	cmd.Flags().BoolVar(&rolling, "rolling", false, "restart replicas one at a time")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list every managed process",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := client.New(sockPath).List()
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%d\t%s\t%s\n", e.ID, e.Name, e.State)
			}
			return nil
		},
	}
}

func logsCmd() *cobra.Command {
	var lines int
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "show a process's captured stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := client.New(sockPath).Logs(control.LogsParams{ID: id, Lines: lines, Follow: follow})
			if err != nil {
				return err
			}
			for _, line := range res.Lines {
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&lines, "lines", 100, "number of trailing lines")
	cmd.Flags().BoolVar(&follow, "follow", false, "wait briefly for trailing output")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|name>",
		Short: "stop and remove a process or replica group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.New(sockPath).Delete(args[0])
		},
	}
}

func daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "inspect the supervisor's own lifecycle",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "show supervisor uptime and process count",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := client.New(sockPath).DaemonStatus()
			if err != nil {
				return err
			}
			fmt.Printf("pid=%d uptime=%ds processes=%d\n", st.PID, st.UptimeSecs, st.ProcessCount)
			return nil
		},
	})
	return cmd
}

func parseID(s string) (uint64, error) {
	var id uint64
	_, err := fmt.Sscanf(s, "%d", &id)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
