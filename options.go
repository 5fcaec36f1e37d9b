package main

import (
	"errors"

	"github.com/jessevdk/go-flags"

	"sweep/config"
	"sweep/search"
)

// Options is the command line. The struct tags are interpreted by
// github.com/jessevdk/go-flags.
type Options struct {
	Regex     bool     `short:"e" long:"regex" description:"treat PATTERN as a regular expression"`
	MatchCase bool     `short:"c" long:"match-case" description:"case-sensitive search"`
	WholeWord bool     `short:"w" long:"whole-word" description:"match whole words only"`
	Replace   *string  `short:"r" long:"replace" value-name:"TEXT" description:"replacement text; \\0-\\9 insert groups of a regular expression"`
	Masks     []string `short:"m" long:"mask" value-name:"GLOB" description:"only search files matching GLOB (repeatable)"`
	Excludes  []string `short:"x" long:"exclude" value-name:"DIR" description:"skip directories named DIR (repeatable)"`
	Yes       bool     `short:"y" long:"yes" description:"replace every match without asking and print a report"`
	NoBackup  bool     `long:"no-backup" description:"do not keep backup copies of rewritten files"`
	Restore   bool     `long:"restore" description:"restore the backups taken under the current directory and exit"`
	Config    string   `long:"config" value-name:"PATH" description:"settings file"`
	LogFile   string   `long:"log-file" value-name:"PATH" description:"log destination"`

	Args struct {
		Pattern string   `positional-arg-name:"PATTERN"`
		Paths   []string `positional-arg-name:"PATH"`
	} `positional-args:"yes"`
}

var errNoPattern = errors.New("missing PATTERN")

func parseArgs(args []string) (*Options, error) {
	opts := &Options{}
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "[OPTIONS] PATTERN [PATH...]"
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if opts.Args.Pattern == "" && !opts.Restore {
		return nil, errNoPattern
	}
	if opts.Yes && opts.Replace == nil {
		return nil, errors.New("--yes needs --replace")
	}
	return opts, nil
}

// applyTo merges the command line over the settings file.
func (o *Options) applyTo(cfg *config.Config) {
	cfg.Regex = cfg.Regex || o.Regex
	cfg.MatchCase = cfg.MatchCase || o.MatchCase
	cfg.WholeWord = cfg.WholeWord || o.WholeWord
	if len(o.Masks) > 0 {
		cfg.FileMasks = o.Masks
	}
	cfg.ExcludeDirs = append(cfg.ExcludeDirs, o.Excludes...)
	if o.NoBackup {
		cfg.Backup = false
	}
	if o.LogFile != "" {
		cfg.LogFile = o.LogFile
	}
}

func (o *Options) searchOptions(cfg *config.Config) search.Options {
	return search.Options{
		FindWhat:    o.Args.Pattern,
		Regex:       cfg.Regex,
		MatchCase:   cfg.MatchCase,
		WholeWord:   cfg.WholeWord,
		FileMasks:   cfg.FileMasks,
		ExcludeDirs: cfg.ExcludeDirs,
		MaxFileSize: cfg.MaxFileSize(),
	}
}

func (o *Options) roots() []string {
	if len(o.Args.Paths) == 0 {
		return []string{"."}
	}
	return o.Args.Paths
}

func (o *Options) replaceText() string {
	if o.Replace == nil {
		return ""
	}
	return *o.Replace
}
