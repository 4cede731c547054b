package mdns

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/dnswire"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/log"
)

// respond answers one inbound query packet with records for every
// advertised service matching its questions. The response goes back to the
// multicast group, as peers expect.
func (s *Service) respond(packet *dnswire.Packet) {
	answers, additionals := s.buildAnswers(packet)
	if len(answers) == 0 && len(additionals) == 0 {
		return
	}

	resp := dnswire.NewResponse()
	resp.Answers = answers
	resp.Additionals = additionals
	data := resp.Encode()

	if _, err := s.conn.WriteToUDP(data, s.group); err != nil {
		s.logger.Error("failed to send discovery response", "err", err)
		return
	}
	s.plog.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionOut,
		Layer:      log.LayerDiscovery,
		Category:   log.CategoryPacket,
		RemoteAddr: s.group.String(),
		Size:       len(data),
		Detail:     "query response",
	})
}

// buildAnswers assembles the record sets answering a query packet.
func (s *Service) buildAnswers(packet *dnswire.Packet) (answers, additionals []dnswire.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range packet.Questions {
		serviceType, ok := questionServiceType(q)
		if !ok {
			continue
		}
		for key, adv := range s.advertised {
			if key.serviceType != serviceType {
				continue
			}

			n := len(q.Labels)
			instanceFQ := []string{adv.ServiceName, q.Labels[n-3], q.Labels[n-2], "local"}
			hostLabels := dnswire.SplitName(hostName(adv.ServiceName, serviceType))

			if q.QType == dnswire.TypeANY || q.QType == dnswire.TypePTR {
				answers = append(answers, dnswire.Resource{
					Labels: q.Labels,
					RType:  dnswire.TypePTR,
					RClass: dnswire.ClassIN,
					TTL:    recordTTL,
					Data:   dnswire.PTRData{Labels: instanceFQ},
				})
			}

			additionals = append(additionals,
				dnswire.Resource{
					Labels: instanceFQ,
					RType:  dnswire.TypeTXT,
					RClass: dnswire.ClassIN,
					TTL:    recordTTL,
					Data:   dnswire.TXTData{Strings: []string{"txtvers=1"}},
				},
				dnswire.Resource{
					Labels: instanceFQ,
					RType:  dnswire.TypeSRV,
					RClass: dnswire.ClassIN,
					TTL:    recordTTL,
					Data:   dnswire.SRVData{Port: adv.Port, Target: hostLabels},
				},
				dnswire.Resource{
					Labels: hostLabels,
					RType:  dnswire.TypeA,
					RClass: dnswire.ClassIN,
					TTL:    addressTTL,
					Data:   addressData(adv.Address),
				},
			)
		}
	}
	return answers, additionals
}

// questionServiceType recognizes questions for the OSC and OSCQuery
// service families and returns the canonical service-type string.
func questionServiceType(q dnswire.Question) (string, bool) {
	n := len(q.Labels)
	if n < 3 || q.Labels[n-1] != "local" {
		return "", false
	}

	isOSCUDP := q.Labels[n-2] == "_udp" && strings.HasPrefix(q.Labels[n-3], "_osc")
	isOSCQueryTCP := q.Labels[n-2] == "_tcp" && strings.HasPrefix(q.Labels[n-3], "_oscjson")
	if !isOSCUDP && !isOSCQueryTCP {
		return "", false
	}
	return fmt.Sprintf("%s.%s.local.", q.Labels[n-3], q.Labels[n-2]), true
}

// hostName derives the SRV target host name for an advertised instance:
// "<instance>.osc.local" for the UDP transport, "<instance>.oscjson.local"
// for the directory.
func hostName(instanceName, serviceType string) string {
	if strings.Contains(serviceType, "_oscjson._tcp") {
		return instanceName + ".oscjson.local"
	}
	return instanceName + ".osc.local"
}

func addressData(ip net.IP) dnswire.AData {
	var a dnswire.AData
	if v4 := ip.To4(); v4 != nil {
		copy(a.Addr[:], v4)
	}
	return a
}
