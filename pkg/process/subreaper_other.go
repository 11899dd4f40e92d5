//go:build !linux

package process

func BecomeSubreaper() error {
	return nil
}
