package debugmeta

import (
	"fmt"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/getsentry/difcheck/internal/errorutil"
	"github.com/getsentry/difcheck/internal/packageutil"
)

type (
	Features struct {
		HasDebugInfo  bool `json:"has_debug_info"`
		HasSources    bool `json:"has_sources"`
		HasSymbols    bool `json:"has_symbols"`
		HasUnwindInfo bool `json:"has_unwind_info"`
	}

	Image struct {
		Arch        string   `json:"arch,omitempty"`
		CodeFile    string   `json:"code_file,omitempty"`
		DebugID     string   `json:"debug_id,omitempty"`
		DebugStatus string   `json:"debug_status,omitempty"`
		Features    Features `json:"features"`
		ImageAddr   string   `json:"image_addr,omitempty"`
		ImageSize   uint64   `json:"image_size,omitempty"`
		ImageVMAddr string   `json:"image_vmaddr,omitempty"`
		Type        string   `json:"type"`
		// UUID is set instead of DebugID on proguard images.
		UUID string `json:"uuid,omitempty"`
	}

	DebugMeta struct {
		Images []Image `json:"images,omitempty"`
	}

	// MatchResult splits the images of a crash report by whether a debug
	// file was found for them. System images without a debug file are kept
	// apart since they are symbolicated from built-in symbol servers.
	MatchResult struct {
		Found   []Image `json:"found"`
		Missing []Image `json:"missing"`
		System  []Image `json:"system"`
	}
)

const (
	StatusFound   = "found"
	StatusMissing = "missing"
)

// Key returns the normalized identifier debug files are matched on, or an
// empty string when the image doesn't carry a valid one.
func (i Image) Key() string {
	id := i.DebugID
	if id == "" {
		id = i.UUID
	}
	key, err := NormalizeDebugID(id)
	if err != nil {
		return ""
	}
	return key
}

// NormalizeDebugID converts the different debug identifier spellings into
// the canonical lowercase "uuid[-age]" form.
//
// For example:
// - "DFB8E43A-F242-3D73-A453-AEB6A777EF75" becomes "dfb8e43a-f242-3d73-a453-aeb6a777ef75"
// - "DFB8E43AF2423D73A453AEB6A777EF750" (breakpad) becomes "dfb8e43a-f242-3d73-a453-aeb6a777ef75"
// - "3249D99D0C4049318610F4E4FB0B69371" becomes "3249d99d-0c40-4931-8610-f4e4fb0b6937-1"
func NormalizeDebugID(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var id, age string
	if len(s) >= 36 && s[8] == '-' && s[13] == '-' {
		id = s[:36]
		if rest := s[36:]; rest != "" {
			if rest[0] != '-' {
				return "", fmt.Errorf("debugmeta: %w: invalid debug id %q", errorutil.ErrDataIntegrity, s)
			}
			age = rest[1:]
		}
	} else {
		if len(s) < 32 {
			return "", fmt.Errorf("debugmeta: %w: debug id %q is too short", errorutil.ErrDataIntegrity, s)
		}
		id, age = s[:32], s[32:]
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("debugmeta: %w: invalid debug id %q: %v", errorutil.ErrDataIntegrity, s, err)
	}
	if age == "" {
		return u.String(), nil
	}
	a, err := strconv.ParseUint(age, 16, 32)
	if err != nil {
		return "", fmt.Errorf("debugmeta: %w: invalid age in debug id %q", errorutil.ErrDataIntegrity, s)
	}
	if a == 0 {
		return u.String(), nil
	}
	return fmt.Sprintf("%s-%x", u.String(), a), nil
}

// Decode reads the debug images out of either a full event payload or a bare
// debug_meta object.
func Decode(b []byte) (DebugMeta, error) {
	var v struct {
		DebugMeta *DebugMeta `json:"debug_meta"`
		Images    []Image    `json:"images"`
	}
	if err := gojson.Unmarshal(b, &v); err != nil {
		return DebugMeta{}, err
	}
	if v.DebugMeta != nil {
		return *v.DebugMeta, nil
	}
	return DebugMeta{Images: v.Images}, nil
}

// Match looks up every wanted image among the available ones. Images
// without a valid identifier can't be symbolicated and are left out of the
// result.
func Match(wanted, available []Image) MatchResult {
	index := make(map[string]struct{}, len(available))
	for _, i := range available {
		if k := i.Key(); k != "" {
			index[k] = struct{}{}
		}
	}
	r := MatchResult{
		Found:   []Image{},
		Missing: []Image{},
		System:  []Image{},
	}
	for _, i := range wanted {
		k := i.Key()
		if k == "" {
			continue
		}
		if _, ok := index[k]; ok {
			i.DebugStatus = StatusFound
			r.Found = append(r.Found, i)
		} else if packageutil.IsApplicationImage(i.Type, i.CodeFile) {
			i.DebugStatus = StatusMissing
			r.Missing = append(r.Missing, i)
		} else {
			i.DebugStatus = StatusMissing
			r.System = append(r.System, i)
		}
	}
	return r
}
