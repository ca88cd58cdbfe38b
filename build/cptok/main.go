// Command cptok converts between scores and compound word tokens.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"moria.us/cptok/build/config"
	"moria.us/cptok/build/cpword"
	"moria.us/cptok/build/tokfile"
	"moria.us/cptok/build/vocab"
	"moria.us/cptok/build/watcher"
)

// An app holds the tokenizer shared by all commands.
type app struct {
	configFile string
	verbose    bool

	tok   *cpword.Tokenizer
	vocab *vocab.Vocab
}

func (a *app) init() error {
	if a.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	cfg := config.Default()
	if a.configFile != "" {
		var err error
		cfg, err = config.Load(a.configFile)
		if err != nil {
			return err
		}
	}
	tk, err := cpword.New(cfg)
	if err != nil {
		return err
	}
	a.tok = tk
	a.vocab = vocab.New(tk.Tables(), tk.Layout())
	logrus.Debugln("Vocabulary:", a.vocab)
	return nil
}

// readSet reads a token file, or tokenizes a score.
func (a *app) readSet(name string) (*tokfile.Set, error) {
	if !watcher.IsScoreName(name) {
		return tokfile.ReadFile(name, a.vocab)
	}
	s, err := watcher.ReadScore(name)
	if err != nil {
		return nil, err
	}
	seqs, err := a.tok.Encode(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return tokfile.NewSet(a.tok, seqs, a.tok.Programs(s)), nil
}

// outputName returns the name of an output file derived from the input.
func outputName(input, ext string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

func programName(set *tokfile.Set, i int) string {
	if set.Programs == nil {
		return "all"
	}
	p := set.Programs[i]
	if p.IsDrum {
		return "drums"
	}
	return fmt.Sprintf("program %d", p.Program)
}

func newRootCommand() *cobra.Command {
	var a app
	root := &cobra.Command{
		Use:           "cptok",
		Short:         "Convert between scores and compound word tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "tokenizer configuration file (JSON or YAML)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "show debug messages")
	root.AddCommand(
		a.encodeCommand(),
		a.decodeCommand(),
		a.validateCommand(),
		a.vocabCommand(),
		a.dumpCommand(),
		a.viewCommand(),
	)
	return root
}

func mainE() error {
	return newRootCommand().Execute()
}

func main() {
	if err := mainE(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
