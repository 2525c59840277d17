package version

// Current is the boardscan release version, without a "v" prefix.
const Current = "1.0.0"
