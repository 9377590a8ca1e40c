//go:build !unix && !tinygo

package main

import (
	"errors"

	"easyboot.dev/boot"
)

type Platform struct{}

func Init() (*Platform, error) {
	return nil, errors.New("flash image files are not supported on this platform")
}

func (p *Platform) Board() *Board {
	return nil
}

func (p *Platform) Boot(e *boot.Engine) error {
	return errors.New("not implemented")
}

func (p *Platform) Close() error {
	return nil
}
