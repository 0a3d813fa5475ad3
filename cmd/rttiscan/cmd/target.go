package cmd

import (
	"fmt"

	"github.com/apex/log"
	"github.com/spf13/viper"
	"github.com/zhuweiyou/rttiscanner"
)

// openTarget opens whatever --pid, --process or --image points at
func openTarget() (rttiscanner.Target, error) {
	switch {
	case viper.GetString("image") != "":
		img, err := rttiscanner.LoadImage(viper.GetString("image"))
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"module": img.Name,
			"base":   img.Base,
		}).Debug("Loaded image")
		return img, nil
	case viper.GetUint32("pid") != 0:
		p, err := rttiscanner.OpenProcess(viper.GetUint32("pid"))
		if err != nil {
			return nil, err
		}
		return p, nil
	case viper.GetString("process") != "":
		p, err := rttiscanner.OpenProcessByName(viper.GetString("process"))
		if err != nil {
			return nil, err
		}
		log.WithField("pid", p.PID()).Debug("Opened process")
		return p, nil
	}
	return nil, fmt.Errorf("must specify one of --pid, --process or --image")
}

// moduleArg returns the module named on the command line, falling back to
// the module stored in a saved image
func moduleArg(args []string, t rttiscanner.Target) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if img, ok := t.(*rttiscanner.Image); ok {
		return img.Name, nil
	}
	return "", fmt.Errorf("must provide a module name")
}
