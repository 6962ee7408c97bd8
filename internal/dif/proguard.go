package dif

import (
	"regexp"

	"github.com/google/uuid"

	"github.com/getsentry/difcheck/internal/debugmeta"
)

// proguardNamespace is the namespace mapping identifiers are derived in, the
// same one the Android Gradle plugin uses.
var proguardNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("guardsquare.com"))

// Member lines with line information look like "    12:14:void onCreate():33:35 -> a".
var proguardLineInfo = regexp.MustCompile(`(?m)^\s+\d+:\d+:`)

// ProguardUUID returns the identifier of a mapping file given its content.
func ProguardUUID(data []byte) uuid.UUID {
	return uuid.NewSHA1(proguardNamespace, data)
}

func readProguard(data []byte) extraction {
	var x extraction
	x.add(entry{
		variant: Variant{ID: ProguardUUID(data).String()},
		features: debugmeta.Features{
			HasDebugInfo: proguardLineInfo.Match(data),
			HasSymbols:   true,
		},
		imageType: "proguard",
	})
	return x
}
