package cmd

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// xmlConfiguration is the daemon configuration schema read by the
// monitoring platform's "edit config" page.
type xmlConfiguration struct {
	XMLName xml.Name    `xml:"configuration"`
	ID      string      `xml:"id,attr"`
	Options []xmlOption `xml:"option"`
}

type xmlOption struct {
	ID      string `xml:"id,attr"`
	Type    string `xml:"type,attr"`
	Default string `xml:"default,attr"`
	Target  string `xml:"target,attr"`
	Help    string `xml:"help,attr"`
}

// The platform shows one option per line; ids only need to be distinct.
var xmlConfigHelp = []string{
	"Edit the config file by navigating to view config -> edit this configuration from the daemons page.",
	"Do not click save on this page as it will clear the config file.",
	"If the config does get cleared it can be restored from ticketkeeper.conf.bak.",
}

var genXMLConfigsCmd = &cobra.Command{
	Use:   "genxmlconfigs",
	Short: "Print the configuration schema XML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeXMLConfigs(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(genXMLConfigsCmd)
}

func writeXMLConfigs(w io.Writer) error {
	conf := xmlConfiguration{ID: "ticketkeeper"}
	for i, help := range xmlConfigHelp {
		conf.Options = append(conf.Options, xmlOption{
			ID:   strings.Repeat(" ", i),
			Type: "string",
			Help: strings.ReplaceAll(help, " ", "%20"),
		})
	}

	out, err := xml.MarshalIndent(conf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode configuration schema: %w", err)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	if _, err := w.Write(append(out, '\n')); err != nil {
		return err
	}
	return nil
}
