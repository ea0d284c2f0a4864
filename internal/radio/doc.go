// Package radio provides network.Radio implementations.
//
//   - NMCLI associates through NetworkManager's command line client and
//     reads link state from sysfs.
//   - None is for hosts that are already online (development, wired boards).
package radio
