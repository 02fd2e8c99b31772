// Package wgconf parses, validates and renders WireGuard tunnel
// configuration.
//
// Two textual forms are supported. The wg-quick form is the INI-like file
// users import and export; Parse reads it and TunnelConfiguration.WgQuickConfig
// writes it back canonically. The settings form is the line-oriented
// key=value protocol understood by the tunnel backend; UAPIConfig writes it
// and ParseUAPI reads it back, including runtime counters from a status dump.
//
// Everything here is pure and synchronous.
package wgconf
