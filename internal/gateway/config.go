package gateway

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/dcrodman/anvil/internal/core/client"
	"github.com/dcrodman/anvil/internal/core/data"
	"github.com/dcrodman/anvil/internal/core/protocol"
	"github.com/dcrodman/anvil/internal/packets"
)

// Settings are the client settings sent during configuration.
type Settings struct {
	Locale              string
	Language            language.Tag
	ViewDistance        byte
	ChatMode            packets.ChatMode
	ChatColors          bool
	DisplayedSkinParts  byte
	MainHand            packets.MainHand
	EnableTextFiltering bool
	AllowServerListings bool
}

// parseLocale maps a client locale such as "en_us" to a language tag.
func parseLocale(locale string) (language.Tag, error) {
	return language.Parse(strings.ReplaceAll(locale, "_", "-"))
}

func (s *Server) handleClientInformation(_ context.Context, c *client.Client, p *protocol.Packet) error {
	var pkt packets.ClientInformation
	if err := pkt.Decode(p, c.Scratch); err != nil {
		return err
	}
	if err := expectEnd(p); err != nil {
		return err
	}

	settings := Settings{
		Locale:              string(pkt.Locale),
		ViewDistance:        pkt.ViewDistance,
		ChatMode:            pkt.ChatMode,
		ChatColors:          pkt.ChatColors,
		DisplayedSkinParts:  pkt.DisplayedSkinParts,
		MainHand:            pkt.MainHand,
		EnableTextFiltering: pkt.EnableTextFiltering,
		AllowServerListings: pkt.AllowServerListings,
	}
	tag, err := parseLocale(settings.Locale)
	if err != nil {
		// Clients ship joke locales that aren't real languages.
		s.log(c).Debugf("unrecognized locale %q: %v", settings.Locale, err)
		tag = language.Und
	}
	settings.Language = tag

	s.log(c).WithFields(logrus.Fields{
		"locale":        settings.Locale,
		"view_distance": settings.ViewDistance,
		"chat_mode":     settings.ChatMode,
		"main_hand":     settings.MainHand,
	}).Debug("received client information")

	var playerID uint64
	s.updateSession(c, func(session *Session) {
		session.Settings = settings
		playerID = session.PlayerID
	})

	if s.DB != nil && playerID != 0 {
		err := data.SavePlayerSettings(s.DB, &data.PlayerSettings{
			PlayerID:            playerID,
			Locale:              settings.Locale,
			ViewDistance:        settings.ViewDistance,
			ChatMode:            int32(settings.ChatMode),
			ChatColors:          settings.ChatColors,
			DisplayedSkinParts:  settings.DisplayedSkinParts,
			MainHand:            int32(settings.MainHand),
			EnableTextFiltering: settings.EnableTextFiltering,
			AllowServerListings: settings.AllowServerListings,
		})
		if err != nil {
			s.log(c).Warnf("error saving client settings: %v", err)
		}
	}
	return nil
}

func (s *Server) handlePluginMessage(_ context.Context, c *client.Client, p *protocol.Packet) error {
	var pkt packets.PluginMessage
	if err := pkt.Decode(p, c.Scratch); err != nil {
		return err
	}
	if err := expectEnd(p); err != nil {
		return err
	}

	if string(pkt.Channel) != packets.BrandChannel {
		s.log(c).Debugf("ignoring %d bytes on plugin channel %s", len(pkt.Data), pkt.Channel)
		return nil
	}

	brand, err := pkt.Brand(c.Scratch)
	if err != nil {
		return err
	}
	c.Brand = string(brand)
	s.updateSession(c, func(session *Session) { session.Brand = c.Brand })

	if s.DB != nil && c.Username != "" {
		if err := data.UpdateBrand(s.DB, c.UUID.String(), c.Brand); err != nil {
			s.log(c).Warnf("error saving client brand: %v", err)
		}
	}
	return nil
}

func (s *Server) handleAcknowledgeFinishConfiguration(_ context.Context, c *client.Client, p *protocol.Packet) error {
	if err := expectEnd(p); err != nil {
		return err
	}
	s.transition(c, protocol.Play)
	return nil
}
