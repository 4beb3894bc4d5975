package http

import (
	"context"
	"encoding/json"

	"github.com/vovakirdan/privchat/internal/core"
	"github.com/vovakirdan/privchat/internal/proto"
)

const (
	errCodeInvalidMessage     = "invalid_message"
	errCodeUnsupportedVersion = "unsupported_version"
)

func (h *WSHandler) inboundToCommand(ctx context.Context, inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeHello:
		var hello proto.HelloData
		if err := json.Unmarshal(inbound.Data, &hello); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed hello"}
		}
		if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
			return nil, &proto.Error{Code: errCodeUnsupportedVersion, Msg: "unsupported protocol version"}
		}
		if hello.Token == "" {
			return nil, &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "token is required"}
		}
		claims, err := h.auth.ValidateToken(ctx, hello.Token)
		if err != nil {
			h.log.Debug().Err(err).Msg("ws hello rejected")
			return nil, &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "invalid token"}
		}
		if hello.User != "" && hello.User != claims.Username {
			return nil, &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "user does not match token"}
		}
		return &core.Command{
			Kind: core.CommandIdentify,
			User: claims.Username,
		}, nil

	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed message"}
		}
		if msg.To == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "to is required"}
		}
		return &core.Command{
			Kind: core.CommandSendMessage,
			Message: core.Message{
				// ID and CreatedAt are assigned when the message is stored.
				Sender:   msg.From,
				Receiver: msg.To,
				Text:     msg.Text,
			},
		}, nil

	case proto.InboundTypeFile:
		var file proto.FileData
		if err := json.Unmarshal(inbound.Data, &file); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed file"}
		}
		if file.To == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "to is required"}
		}
		return &core.Command{
			Kind: core.CommandSendMessage,
			Message: core.Message{
				Sender:   file.From,
				Receiver: file.To,
				File:     &core.File{Data: file.FileData, Name: file.FileName},
			},
		}, nil

	default:
		return nil, &proto.Error{Code: errCodeInvalidMessage, Msg: "unknown message type"}
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventIdentified:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventHello,
			Data: proto.EventHelloData{
				User:     event.User,
				Protocol: proto.ProtocolVersion,
			},
		}
	case core.EventMessage:
		msg := event.Message
		if msg.IsFile() {
			return proto.Outbound{
				Type:  proto.OutboundTypeEvent,
				Event: proto.EventFile,
				Data: proto.EventFileData{
					ID:       msg.ID,
					Sender:   msg.Sender,
					Receiver: msg.Receiver,
					FileData: msg.File.Data,
					FileName: msg.File.Name,
					TS:       msg.CreatedAt.Unix(),
				},
			}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessage,
			Data: proto.EventMessageData{
				ID:       msg.ID,
				Sender:   msg.Sender,
				Receiver: msg.Receiver,
				Content:  msg.Text,
				TS:       msg.CreatedAt.Unix(),
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "internal error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
