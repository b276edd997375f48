package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/relaynode/internal/hardware"
	"github.com/smazurov/relaynode/internal/logging"
	"github.com/smazurov/relaynode/internal/relay"
)

// HardwareResolver builds the hardware configuration for a layout.
type HardwareResolver func(layout *relay.Layout) (hardware.Config, error)

// CreateRelaysCmd creates the relays command, which prints the relay table
// of the configured layout and, with --readback, the state the hardware
// currently drives. Reading back does not write to the relays.
func CreateRelaysCmd(layoutName func() string, resolve HardwareResolver) *cobra.Command {
	var readback bool

	cmd := &cobra.Command{
		Use:   "relays",
		Short: "Show the relay layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			layout, err := relay.LayoutByName(layoutName())
			if err != nil {
				return err
			}

			var states []relay.State
			if readback {
				states, err = readStates(layout, resolve)
				if err != nil {
					return err
				}
			}
			return printLayout(cmd.OutOrStdout(), layout, states)
		},
	}

	cmd.Flags().BoolVarP(&readback, "readback", "r", false, "Read the current state from the hardware")
	return cmd
}

func readStates(layout *relay.Layout, resolve HardwareResolver) ([]relay.State, error) {
	cfg, err := resolve(layout)
	if err != nil {
		return nil, err
	}
	transports, err := hardware.Open(cfg, logging.GetLogger("hardware"))
	if err != nil {
		return nil, fmt.Errorf("open hardware: %w", err)
	}
	defer hardware.CloseAll(transports)

	words := make([]relay.Word, len(transports))
	for i, t := range transports {
		data, err := t.Receive(1)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", t.Name(), err)
		}
		words[i] = relay.Word(data[0])
	}
	return relay.Decode(words, layout.Len()), nil
}

func printLayout(out io.Writer, layout *relay.Layout, states []relay.State) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	header := "ORDINAL\tID\tNAME\tWORD\tMASK"
	if layout.Kind == hardware.KindGPIO {
		header += "\tPIN"
	}
	if states != nil {
		header += "\tENABLED"
	}
	fmt.Fprintln(w, header)

	for _, id := range layout.IDs() {
		def, _ := layout.Definition(id)
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%#04x", id, def.Key, def.Name, relay.WordIndex(id), byte(relay.Mask(id)))
		if layout.Kind == hardware.KindGPIO {
			fmt.Fprintf(w, "\t%d", def.Pin)
		}
		if states != nil {
			fmt.Fprintf(w, "\t%t", states[id].Enabled)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}
