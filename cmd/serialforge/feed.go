package main

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/kbaxter/serialforge/internal/codec"
	"github.com/kbaxter/serialforge/internal/framing"
)

type feedFlags struct {
	strategy   string
	delimiter  string
	timeoutMs  int
	prefixSize int
	byteOrder  string
	script     string
	flush      bool
}

func newFeedCmd() *cobra.Command {
	flags := &feedFlags{}

	cmd := &cobra.Command{
		Use:   "feed <hex-chunk>...",
		Short: "Run hex chunks through a framing strategy",
		Long: `Feed one or more hex-encoded chunks through a framing engine and print
the frames it emits plus whatever stays buffered. Chunks arrive in argument
order, as if read off the wire.`,
		Example: `  serialforge feed --strategy DELIMITER --delimiter '\r\n' 41542b4f4b0d0a50454e44494e47
  serialforge feed --strategy PREFIX_LENGTH --prefix-size 1 03414243 02
  serialforge feed --strategy TIMEOUT --timeout 100 --flush 48 49`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeed(flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.strategy, "strategy", "NONE", "Framing strategy: NONE, DELIMITER, TIMEOUT, PREFIX_LENGTH or SCRIPT")
	cmd.Flags().StringVar(&flags.delimiter, "delimiter", "", `Delimiter byte sequence; \r \n \t \0 and \xNN escapes accepted`)
	cmd.Flags().IntVar(&flags.timeoutMs, "timeout", 0, "Idle-flush window in milliseconds")
	cmd.Flags().IntVar(&flags.prefixSize, "prefix-size", 0, "Length-prefix size in bytes (1-8)")
	cmd.Flags().StringVar(&flags.byteOrder, "byte-order", "", "Length-prefix byte order: LE or BE (default BE)")
	cmd.Flags().StringVar(&flags.script, "script", "", "Framing script")
	cmd.Flags().BoolVar(&flags.flush, "flush", false, "Force-flush buffered bytes after the last chunk")

	return cmd
}

func runFeed(flags *feedFlags, args []string) error {
	log, err := newLoggerFromFlags()
	if err != nil {
		return err
	}
	defer log.Close()

	strategy, err := framing.ParseStrategy(flags.strategy)
	if err != nil {
		return err
	}
	delimiter, err := unescapeDelimiter(flags.delimiter)
	if err != nil {
		return err
	}
	order, err := codec.ParseByteOrder(flags.byteOrder)
	if err != nil {
		return err
	}
	cfg := framing.Config{
		Strategy:         strategy,
		Delimiter:        delimiter,
		TimeoutMs:        flags.timeoutMs,
		PrefixLengthSize: flags.prefixSize,
		ByteOrder:        order,
		Script:           flags.script,
	}
	engine, err := framing.NewEngine(cfg, log)
	if err != nil {
		return err
	}

	count := 0
	emit := func(frames []framing.Frame) {
		for _, f := range frames {
			count++
			fmt.Fprintf(os.Stdout, "frame %d: %s %s\n", count, codec.EncodeHex(f.Data), printable(f.Data))
			if f.Header != nil {
				fmt.Fprintf(os.Stdout, "  header: %s\n", codec.EncodeHex(f.Header))
			}
		}
	}

	now := time.Now()
	for _, arg := range args {
		chunk, err := codec.DecodeHex(arg)
		if err != nil {
			return err
		}
		emit(engine.Feed(chunk, now))
	}
	if flags.flush {
		emit(engine.ForceFlush(now))
	}
	if pending := engine.Pending(); len(pending) > 0 {
		fmt.Fprintf(os.Stdout, "pending: %s %s\n", codec.EncodeHex(pending), printable(pending))
	}
	if count == 0 && len(engine.Pending()) == 0 {
		fmt.Fprintln(os.Stdout, "no frames")
	}
	return nil
}

// unescapeDelimiter expands the escapes users type on a shell command line.
func unescapeDelimiter(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case '0':
			b.WriteByte(0)
		case '\\':
			b.WriteByte('\\')
		case 'x':
			if i+2 >= len(s) {
				return "", fmt.Errorf("truncated \\x escape in delimiter")
			}
			data, err := codec.DecodeHex(s[i+1 : i+3])
			if err != nil {
				return "", fmt.Errorf("bad \\x escape in delimiter: %w", err)
			}
			b.WriteByte(data[0])
			i += 2
		default:
			return "", fmt.Errorf("unknown escape \\%c in delimiter", s[i])
		}
	}
	return b.String(), nil
}

// printable renders frame bytes for humans, dots for control bytes.
func printable(data []byte) string {
	var b strings.Builder
	b.WriteByte('|')
	for _, c := range data {
		if c < 0x80 && unicode.IsPrint(rune(c)) {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	b.WriteByte('|')
	return b.String()
}
