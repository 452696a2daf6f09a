// Package config loads changdang.yml through viper, applies environment
// overrides and converts the result into the settings each package takes.
package config
