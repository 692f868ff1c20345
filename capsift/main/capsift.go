// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Main package for the capsift tool.
package main

import (
	"bufio"
	"os"

	"github.com/capsift/capsift/capsift"
	"github.com/capsift/capsift/common/log"
	"github.com/capsift/capsift/common/options"
	"github.com/capsift/capsift/common/signals"
	"github.com/capsift/capsift/common/util"
)

func main() {
	// initialize command-line opts
	opts := options.New("capsift", capsift.Usage)

	inputOpts := &capsift.InputOptions{}
	opts.AddOptions(inputOpts)
	decodeOpts := &capsift.DecodeOptions{}
	opts.AddOptions(decodeOpts)

	args, err := opts.ParseArgs(os.Args[1:])
	if err != nil {
		log.Logvf(log.Always, "error parsing command line options: %v", err)
		log.Logvf(log.Always, "try 'capsift --help' for more information")
		os.Exit(util.ExitBadOptions)
	}

	// print help, if specified
	if opts.PrintHelp(false) {
		return
	}

	// print version, if specified
	if opts.PrintVersion() {
		os.Exit(util.ExitClean)
	}

	// init logger
	log.SetVerbosity(opts.Verbosity)

	if len(args) == 0 {
		log.Logv(log.Always, "no capture file specified")
		log.Logv(log.Always, "try 'capsift --help' for more information")
		os.Exit(util.ExitBadOptions)
	}
	if len(args) > 1 {
		log.Logvf(log.Always, "only one capture file may be specified, got: %v", args)
		log.Logv(log.Always, "try 'capsift --help' for more information")
		os.Exit(util.ExitBadOptions)
	}

	output := bufio.NewWriterSize(os.Stdout, 256*1024)

	sift := capsift.Capsift{
		ToolOptions:   opts,
		InputOptions:  inputOpts,
		DecodeOptions: decodeOpts,
		TargetPath:    args[0],
		OutputWriter:  output,
	}

	if err = sift.Init(); err != nil {
		util.Exitf(util.ExitError, "%v", err)
	}

	finishedChan := signals.HandleWithInterrupt(sift.Cancel)
	defer close(finishedChan)

	err = sift.Run()
	if flushErr := output.Flush(); err == nil && flushErr != nil {
		err = flushErr
	}
	if err != nil {
		log.Logvf(log.Always, "%v", err)
		os.Exit(util.ExitError)
	}
}
