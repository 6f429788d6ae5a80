// Package config loads authfront settings from the environment.
//
// Values are read from the process environment after optional
// .env.local and .env files are applied; variables already set in the
// environment win over both files.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Backend:", cfg.APIURL)
package config
