// Provides platform-appropriate paths for the daemon.
//
// All paths follow XDG conventions on Linux and platform-native conventions
// on macOS and Windows. The daemon name "kilnd" is used as the subdirectory
// under each base path. Cache directories hold pulled base image archives
// and downloaded tool archives so repeated bakes skip the network.
package paths
