package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/sxmlstream/internal/assembler"
	"github.com/danmuck/sxmlstream/internal/ingest"
	"github.com/danmuck/sxmlstream/internal/logging"
	"github.com/danmuck/sxmlstream/internal/xmltext"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "sxmlparse: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	startTag  string
	extract   []string
	chunkSize int
	decode    bool
	attrs     bool
	maxBuffer int
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("sxmlparse", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.startTag, "start-tag", "t", "TestPlan", "outer message tag")
	flagSet.StringSliceVarP(&opts.extract, "extract", "e", []string{"TestData"}, "tags whose values are printed per message")
	flagSet.IntVar(&opts.chunkSize, "chunk-size", ingest.DefaultChunkSize, "bytes fed to the assembler per chunk")
	flagSet.BoolVar(&opts.decode, "decode", false, "decode entities in printed values")
	flagSet.BoolVar(&opts.attrs, "attrs", false, "also print the attributes of each extracted tag")
	flagSet.IntVar(&opts.maxBuffer, "max-buffer", 0, "assembler buffer cap in bytes (0 = unlimited)")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	logging.ConfigureRuntime()

	in := stdin
	name := "stdin"
	if rest := flagSet.Args(); len(rest) > 0 && rest[0] != "-" {
		f, err := os.Open(rest[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
		name = rest[0]
	}

	asm, err := assembler.New(assembler.Config{
		StartTag:      opts.startTag,
		Mode:          assembler.NotifyOnly,
		MaxBufferSize: opts.maxBuffer,
	}, assembler.ObserverFuncs{
		OnParseError: func(perr assembler.ParseError) {
			log.Warn().Str("input", name).Str("kind", perr.String()).Msg("parse error")
		},
	})
	if err != nil {
		return err
	}

	count := 0
	feeder := feederFunc(func(chunk string) error {
		err := asm.AddData(chunk)
		for {
			msg, ok := asm.NextMessage()
			if !ok {
				break
			}
			count++
			if werr := printMessage(stdout, count, msg, opts); werr != nil {
				return werr
			}
		}
		return err
	})
	if err := ingest.Pump(context.Background(), in, feeder, opts.chunkSize); err != nil {
		return err
	}
	log.Debug().Str("input", name).Int("messages", count).Int("leftover", asm.BufferLen()).Msg("input done")
	return nil
}

type feederFunc func(chunk string) error

func (f feederFunc) AddData(chunk string) error { return f(chunk) }

func printMessage(w io.Writer, n int, msg string, opts options) error {
	if _, err := fmt.Fprintf(w, "message %d (%d bytes)\n", n, len(msg)); err != nil {
		return err
	}
	for _, tag := range opts.extract {
		values := xmltext.TagsValues(msg, tag)
		if opts.decode {
			values = xmltext.DecodedTagsValues(msg, tag)
		}
		var props []map[string]string
		if opts.attrs {
			props = xmltext.TagsProperties(msg, tag)
		}
		for i, v := range values {
			if _, err := fmt.Fprintf(w, "parsed %s: %q\n", tag, v); err != nil {
				return err
			}
			if i < len(props) && len(props[i]) > 0 {
				if _, err := fmt.Fprintf(w, "  attrs: %v\n", props[i]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
