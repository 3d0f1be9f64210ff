package version

// Version is the current release of the phonebook app.
const Version = "0.1.0"
