package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbaxter/serialforge/internal/capture"
	"github.com/kbaxter/serialforge/internal/codec"
	"github.com/kbaxter/serialforge/internal/config"
	sferr "github.com/kbaxter/serialforge/internal/errors"
	"github.com/kbaxter/serialforge/internal/framing"
	"github.com/kbaxter/serialforge/internal/logging"
	"github.com/kbaxter/serialforge/internal/payload"
	"github.com/kbaxter/serialforge/internal/respond"
	"github.com/kbaxter/serialforge/internal/session"
	"github.com/kbaxter/serialforge/internal/transport"
)

type runFlags struct {
	configPath string
	command    string
	params     []string
	responses  []string
	tracePath  string
}

// newRunCmd replays a command round trip offline: build the payload, answer
// it with the supplied response chunks, frame and validate the result.
func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a command, replay canned response chunks, validate",
		Example: `  serialforge run --config modem.yaml --command dial --param number=5551234 \
      --response 41542b4f4b0d0a
  serialforge run --config plc.yaml --command read_reg --response 03414243 --trace run.cbor`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Command-set document (required)")
	cmd.Flags().StringVar(&flags.command, "command", "", "Command name (required)")
	cmd.Flags().StringArrayVarP(&flags.params, "param", "p", nil, "Parameter value as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&flags.responses, "response", nil, "Hex response chunk the device replies with (repeatable, in order)")
	cmd.Flags().StringVar(&flags.tracePath, "trace", "", "Record the round trip to this CBOR trace file")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("command")

	return cmd
}

func runRun(flags *runFlags) error {
	log, err := newLoggerFromFlags()
	if err != nil {
		return err
	}
	defer log.Close()

	doc, err := config.LoadFile(flags.configPath)
	if err != nil {
		return err
	}
	c := doc.Command(flags.command)
	if c == nil {
		return fmt.Errorf("command %q not found in %s", flags.command, flags.configPath)
	}
	values, err := parseParamFlags(flags.params)
	if err != nil {
		return err
	}
	matcher, err := doc.Matcher()
	if err != nil {
		return err
	}
	chunks, err := decodeChunks(flags.responses)
	if err != nil {
		return err
	}

	var rec *capture.Recorder
	if flags.tracePath != "" {
		rec, err = capture.Create(flags.tracePath)
		if err != nil {
			return err
		}
		defer rec.Close()
	}
	record := func(kind, sessionID string, ts time.Time, data []byte) {
		if rec == nil {
			return
		}
		if err := rec.RecordBytes(kind, sessionID, ts, data); err != nil {
			log.Error("trace record: %v", err)
		}
	}

	// The command's framing override wins over the document default.
	frameCfg := framing.Config{Strategy: framing.StrategyNone}
	if doc.Framing != nil {
		frameCfg = *doc.Framing
	}
	if c.Framing != nil {
		frameCfg = *c.Framing
	}

	manager := session.NewManager(nil, log)
	sess, err := manager.Open(frameCfg)
	if err != nil {
		return err
	}
	defer manager.Close(sess.ID)

	var frames []framing.Frame
	loop := transport.NewLoopback(func([]byte) [][]byte { return chunks }, nil)
	loop.Subscribe(func(data []byte, ts time.Time) {
		record(capture.EventChunk, sess.ID, ts, data)
		frames = append(frames, sess.Feed(data, ts)...)
	})

	builder := &payload.Builder{Logger: log}
	data, err := c.BuildPayload(builder, matcher, values)
	if err != nil {
		return sferr.WrapBuildError(err, flags.command)
	}
	record(capture.EventWrite, sess.ID, time.Now(), data)
	fmt.Fprintf(os.Stdout, "sent: %s %s\n", codec.EncodeHex(data), printable(data))
	if err := loop.Write(data); err != nil {
		return err
	}
	frames = append(frames, sess.ForceFlush()...)
	for _, f := range frames {
		record(capture.EventFrame, sess.ID, f.Timestamp, f.Data)
	}

	if c.Respond == nil {
		for i, f := range frames {
			fmt.Fprintf(os.Stdout, "frame %d: %s %s\n", i+1, codec.EncodeHex(f.Data), printable(f.Data))
		}
		return nil
	}
	return judgeFrames(c.Respond, frames, sess, rec, log)
}

// judgeFrames applies the command's response policy to the replayed frames:
// the first accepted frame wins, rejections are reported, extraction vars
// land in the session.
func judgeFrames(cfg *respond.Config, frames []framing.Frame, sess *session.Session,
	rec *capture.Recorder, log *logging.Logger) error {

	validator, err := respond.NewValidator(*cfg, log)
	if err != nil {
		return err
	}
	var extractor *respond.Extractor
	if cfg.ExtractionEnabled {
		extractor, err = respond.NewExtractor(cfg.ExtractionRules, log)
		if err != nil {
			return err
		}
	}

	rejected := 0
	for _, f := range frames {
		if !validator.Check(f) {
			rejected++
			if rec != nil {
				rec.RecordBytes(capture.EventReject, sess.ID, f.Timestamp, f.Data)
			}
			continue
		}
		if rec != nil {
			rec.RecordBytes(capture.EventAccept, sess.ID, f.Timestamp, f.Data)
		}
		fmt.Fprintf(os.Stdout, "accepted: %s %s\n", codec.EncodeHex(f.Data), printable(f.Data))
		if extractor != nil {
			for name, value := range extractor.Extract(f) {
				sess.SetVar(name, value)
				if rec != nil {
					rec.RecordVar(sess.ID, name, value)
				}
				fmt.Fprintf(os.Stdout, "  %s = %s\n", name, value)
			}
		}
		return nil
	}

	if rec != nil {
		rec.Record(capture.Event{Kind: capture.EventTimeout, SessionID: sess.ID})
	}
	if rejected > 0 {
		return &sferr.RejectedError{Frames: rejected, Configured: cfg.Timeout()}
	}
	return &sferr.TimeoutError{Configured: cfg.Timeout()}
}

func decodeChunks(hexChunks []string) ([][]byte, error) {
	chunks := make([][]byte, 0, len(hexChunks))
	for _, h := range hexChunks {
		data, err := codec.DecodeHex(h)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, data)
	}
	return chunks, nil
}
