package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/solatis/ticketkeeper/internal/core/db"
	"github.com/solatis/ticketkeeper/internal/core/store"
	"github.com/solatis/ticketkeeper/internal/types"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxEventLine bounds one JSON line on import.
const maxEventLine = 1 << 20

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect and load events in the event store",
}

var eventsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Insert events from a JSON-lines file (- for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsImport,
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open events",
	Args:  cobra.NoArgs,
	RunE:  runEventsList,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsImportCmd)
	eventsCmd.AddCommand(eventsListCmd)
	eventsListCmd.Flags().Bool("json", false, "print one JSON object per event")
	eventsListCmd.Flags().Bool("log", false, "include the audit log of each event")
}

func openStore(cmd *cobra.Command) (*store.SQLStore, io.Closer, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log, logCloser, err := consoleLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	defer logCloser.Close()

	database, err := db.Open(cmd.Context(), cfg.DBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.MigrateUp(cmd.Context(), database, log); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return store.NewSQLStore(queries, store.DefaultUser), database, nil
}

func runEventsImport(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}

	events, err := decodeEvents(in)
	if err != nil {
		return err
	}

	st, closer, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	for _, evt := range events {
		if err := st.InsertEvent(cmd.Context(), evt); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d events\n", len(events))
	return nil
}

// decodeEvents reads one JSON event per line, skipping blank lines.
func decodeEvents(r io.Reader) ([]*types.Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventLine)

	var events []*types.Event
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		evt := &types.Event{}
		if err := json.Unmarshal(raw, evt); err != nil {
			return nil, fmt.Errorf("line %d: failed to decode event: %w", line, err)
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

func runEventsList(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	withLog, _ := cmd.Flags().GetBool("log")

	st, closer, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	refs, err := st.ListEvents(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if !asJSON {
		fmt.Fprintln(tw, "EVID\tSTATE\tSEV\tDEVICE\tOWNER\tSUMMARY")
	}
	enc := json.NewEncoder(out)

	for _, ref := range refs {
		evt, err := st.GetEvent(ctx, ref.EvID)
		if store.IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}

		if asJSON {
			if err := enc.Encode(evt); err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", evt.EvID, evt.EventState, evt.Severity, evt.Device, evt.OwnerID, evt.Summary)
		}

		if !withLog {
			continue
		}
		entries, err := st.EventLog(ctx, evt.EvID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if asJSON {
				if err := enc.Encode(e); err != nil {
					return fmt.Errorf("failed to encode log entry: %w", err)
				}
				continue
			}
			fmt.Fprintf(tw, "\t%s\t\t%s\t\t%s\n", e.CTime.Format(types.TimeFormat), e.UserName, e.Text)
		}
	}

	if asJSON {
		return nil
	}
	return tw.Flush()
}
