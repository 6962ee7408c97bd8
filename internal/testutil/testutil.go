package testutil

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var defaultCmpOptions = []cmp.Option{
	// A nil slice and an empty one are the same list of variants or images.
	cmpopts.EquateEmpty(),
}

func Diff(a, b interface{}, opts ...cmp.Option) string {
	opts = append(opts, defaultCmpOptions...)
	return cmp.Diff(a, b, opts...)
}
