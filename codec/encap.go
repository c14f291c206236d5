package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mdlayher/netlink"
	vnl "github.com/vishvananda/netlink"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/kernel"
)

// maxMPLSLabel is the largest 20-bit MPLS label.
const maxMPLSLabel = 1<<20 - 1

func encodeEncap(ae *netlink.AttributeEncoder, e *nexthop.Encap) {
	ae.Uint16(kernel.NHA_ENCAP_TYPE, e.Type)
	ae.Do(netlink.Nested|kernel.NHA_ENCAP, func() ([]byte, error) {
		return e.Data, nil
	})
}

// ParseMPLSLabels parses a label stack of the form "LABEL[/LABEL...]".
func ParseMPLSLabels(s string) ([]int, error) {
	if s == "" {
		return nil, &nexthop.UsageError{Arg: s, Reason: "invalid MPLS label stack"}
	}
	var labels []int
	for _, tok := range strings.Split(s, "/") {
		v, err := strconv.ParseUint(tok, 0, 32)
		if err != nil || v > maxMPLSLabel {
			return nil, &nexthop.UsageError{Arg: tok, Reason: "invalid MPLS label"}
		}
		labels = append(labels, int(v))
	}
	return labels, nil
}

// MPLSEncap builds an MPLS encapsulation pushing labels, outermost first.
func MPLSEncap(labels []int) (*nexthop.Encap, error) {
	e := &vnl.MPLSEncap{Labels: labels}
	data, err := e.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode mpls encap: %w", err)
	}
	return &nexthop.Encap{Type: uint16(e.Type()), Data: data}, nil
}

// EncapLabels returns the label stack of an MPLS encapsulation.
func EncapLabels(e *nexthop.Encap) ([]int, error) {
	if e.Type != kernel.LWTUNNEL_ENCAP_MPLS {
		return nil, fmt.Errorf("encap type %d is not mpls", e.Type)
	}
	var m vnl.MPLSEncap
	if err := m.Decode(e.Data); err != nil {
		return nil, fmt.Errorf("decode mpls encap: %w", err)
	}
	return m.Labels, nil
}

// EncapName returns the display name of an encapsulation type.
func EncapName(typ uint16) string {
	if typ == kernel.LWTUNNEL_ENCAP_MPLS {
		return "mpls"
	}
	return strconv.Itoa(int(typ))
}

// FormatEncap renders e the way it is given on the command line.
func FormatEncap(e *nexthop.Encap) string {
	labels, err := EncapLabels(e)
	if err != nil {
		return fmt.Sprintf("encap %s", EncapName(e.Type))
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = strconv.Itoa(l)
	}
	return fmt.Sprintf("encap mpls %s", strings.Join(parts, "/"))
}
