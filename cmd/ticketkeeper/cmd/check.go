package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/solatis/ticketkeeper/internal/core/config"
	"github.com/solatis/ticketkeeper/internal/expand"
	"github.com/solatis/ticketkeeper/internal/rules"
	"github.com/solatis/ticketkeeper/internal/types"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load the rule file and report its sections",
	Long: `Load and compile the rule file, failing on malformed regular expressions or
missing DAEMONSTUFF options. With --event, evaluate one JSON event against the
rules and print the ticket command or auto-clear that the daemon would run.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().String("event", "", "JSON event file to evaluate")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, closer, err := consoleLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	rf, err := config.LoadRuleFile(cfg.RulesFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	describeRuleFile(out, rf)

	eventPath, _ := cmd.Flags().GetString("event")
	if eventPath == "" {
		return nil
	}
	data, err := os.ReadFile(eventPath)
	if err != nil {
		return fmt.Errorf("failed to read event: %w", err)
	}
	evt := &types.Event{}
	if err := json.Unmarshal(data, evt); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	return dryRun(out, rf, evt, log)
}

func describeRuleFile(w io.Writer, rf *config.RuleFile) {
	fmt.Fprintf(w, "rule file: %s\n", rf.Path)
	fmt.Fprintf(w, "ttcommand: %s\n", rf.TTCommand)
	fmt.Fprintf(w, "cycletime: %s\n", rf.CycleTime)
	for _, sec := range rf.Rules {
		fmt.Fprintf(w, "[%s] %s\n", sec.Name, optionNames(sec))
		warnUnknownOptions(w, sec)
	}
	if rf.AutoClear != nil {
		fmt.Fprintf(w, "[%s] %s\n", config.SectionAutoClear, optionNames(rf.AutoClear))
		warnUnknownOptions(w, rf.AutoClear)
	} else {
		fmt.Fprintf(w, "no %s section; events are never cleared\n", config.SectionAutoClear)
	}
}

func optionNames(sec *rules.Section) string {
	names := make([]string, 0, len(sec.Options))
	for _, opt := range sec.Options {
		names = append(names, opt.Name)
	}
	if len(names) == 0 {
		return "(matches every event)"
	}
	return strings.Join(names, " ")
}

// warnUnknownOptions reports options no criterion reads, usually a misspelt field.
func warnUnknownOptions(w io.Writer, sec *rules.Section) {
	var unknown []string
	for _, opt := range sec.Options {
		if !knownOption(opt.Name) {
			unknown = append(unknown, opt.Name)
		}
	}
	if len(unknown) > 0 {
		fmt.Fprintf(w, "  warning: unknown options ignored: %s\n", strings.Join(unknown, " "))
	}
}

func knownOption(name string) bool {
	if strings.HasPrefix(name, rules.ParamPrefix) {
		return true
	}
	for _, field := range rules.Fields() {
		if strings.HasPrefix(name, field+"-") || strings.HasPrefix(name, "not"+field+"-") {
			return true
		}
	}
	return false
}

// dryRun reports what one cycle would do with evt, without side effects.
func dryRun(w io.Writer, rf *config.RuleFile, evt *types.Event, log logrus.FieldLogger) error {
	if evt.EventState != types.EventStateNew {
		fmt.Fprintf(w, "event is %s; only new events are handled\n", evt.EventState)
		return nil
	}

	engine := rules.NewEngine(rf.Rules, log)
	if sec := engine.FirstMatch(evt); sec != nil {
		argv, err := expand.Command(rf.TTCommand, rf.Daemon, sec.Params(), evt)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "section %s opens a ticket: %q\n", sec.Name, argv)
		return nil
	}

	if rf.AutoClear != nil {
		ok, err := engine.Selector().Selects(rf.AutoClear, evt)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintln(w, "AUTOCLEAR clears the event")
			return nil
		}
	}
	fmt.Fprintln(w, "no section matches")
	return nil
}
