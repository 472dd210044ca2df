// Package plugins hosts report plugin subpackages. Plugins contribute dataset
// templates to core.Service and receive their database through the bound
// environment; they never open connections or register drivers themselves.
package plugins
