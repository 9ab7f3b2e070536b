package trove

// Version is the current trove release.
const Version = "0.1.0"
