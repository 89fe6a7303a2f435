package version

import "fmt"

type Version struct {
	Major, Minor, Patch int
}

func (v *Version) String() string {
	return fmt.Sprintf("%v.%v.%v", v.Major, v.Minor, v.Patch)
}

// Info describes the product embedding the engine.
type Info struct {
	Name       string
	Version    Version
	Vendor     string
	SupportURL string
}

// Default is used when the embedder supplies no version information.
var Default = Info{
	Name:    "Courier",
	Version: Version{Major: 0, Minor: 1, Patch: 0},
	Vendor:  "courier-mail",
}

// Mailer returns the value of the X-Mailer header written on outgoing messages.
func (info Info) Mailer() string {
	if info.Name == "" {
		return ""
	}

	return fmt.Sprintf("%v %v", info.Name, info.Version.String())
}

// UserAgent returns a product token for connection logging, including the vendor when known.
func (info Info) UserAgent() string {
	if info.Vendor == "" {
		return info.Mailer()
	}

	return fmt.Sprintf("%v (%v)", info.Mailer(), info.Vendor)
}
