package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/stbs/core/frame"
	"github.com/kilianp07/stbs/core/rtdb"
)

var showReply bool

var frameCmd = &cobra.Command{
	Use:   "frame <body>",
	Short: "Encode a command frame body with its checksum",
	Long: "Encode wraps a frame body such as PO11 into !PO11257#. With --reply the frame\n" +
		"is also applied to an empty process image and the controller's reply is printed.",
	Args: cobra.ExactArgs(1),
	RunE: runFrame,
}

func init() {
	frameCmd.Flags().BoolVar(&showReply, "reply", false, "print the controller reply")
	rootCmd.AddCommand(frameCmd)
}

func runFrame(cmd *cobra.Command, args []string) error {
	body := []byte(args[0])
	if len(body) < 2 {
		return fmt.Errorf("frame body needs a device and a command byte, got %q", args[0])
	}
	raw := frame.Encode(body)
	if len(raw) > frame.MaxLen {
		return fmt.Errorf("frame %q exceeds %d bytes", raw, frame.MaxLen)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, string(raw))
	if showReply {
		reply := frame.NewProcessor(rtdb.NewMemoryStore(), nil).Process(raw)
		fmt.Fprintln(out, string(reply))
	}
	return nil
}
