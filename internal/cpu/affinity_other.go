//go:build !linux && !windows

package cpu

// pinToCore is unavailable here; macOS, for one, only offers affinity hints.
func pinToCore(int) error {
	return ErrPinningUnsupported
}
