//go:build arm64

package fault

import "github.com/wasmrt/rtfault/pkg/codeversion"

const hostArch = codeversion.ArchAarch64
