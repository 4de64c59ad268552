// Package autoload initializes the global logger from the environment on
// import. Import for side effects only:
//
//	_ "github.com/ManagementMO/dreamwell-assessment/pkg/logger/autoload"
package autoload

import (
	configx "github.com/ManagementMO/dreamwell-assessment/pkg/config"
	logx "github.com/ManagementMO/dreamwell-assessment/pkg/logger"
)

func init() {
	cfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*cfg)
}
