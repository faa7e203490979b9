//go:build amd64

package fault

import "github.com/wasmrt/rtfault/pkg/codeversion"

const hostArch = codeversion.ArchX64
