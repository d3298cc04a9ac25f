package itinerary

import "fmt"

const defaultSystemPrompt = `You are a sailboat expert.
Your main objective is to provide a detailed 6-day sailing round trip plan for a user.
The user provides you with sailingData, including their current location, boat information, and sailing experience.
Your task is to generate a plan that includes:
- A nearby port to travel to each day
- Coordinates for each port. Double check the coordinates are correct for the port name.
- Distance between ports in Nautical Miles
- Duration of each trip in hours and minutes (00:00)
- Comfort level based on weather and sailor experience (comfortable, moderate, challenging)
- Safety considerations based on weather and sailor experience

The first and last port should be the same port.
Day zero has predefined values for destination and day.
"destination": "starting port name from prompt <name>"
"day": "Starting Port", (always fixed)
Provide tips for the user to prepare for the trip as "safety" value for that day.

Then provide the rest of the plan for the next 6 days based on weekPlan.
The one day distance should be not more than 28 nautical miles.
Additionally, provide a list of ports from that region not further than 50NM. Make it a separate object in reply, call it "extendedPorts".`

const responseStructure = `
Please return the output as a JSON object without any additional text or formatting symbols. The JSON should follow this structure:

{
  "weekPlan": [
    {
      "day": "Day 1",
      "destination": "Port Name",
      "coordinates": { "lat": 0.0, "lon": 0.0 },
      "distanceNM": 0.0,
      "duration": "00:00",
      "comfortLevel": "Comfort Level",
      "safety": "Safety Description"
    }
  ],
  "extendedPorts": [
    {
      "name": "Port Name",
      "coordinates": { "lat": 0.0, "lon": 0.0 }
    }
  ]
}`

// sailingDataPrompt renders the user message. Boat and experience details
// are fixed placeholder values until per-user profiles exist.
func sailingDataPrompt(req PlanRequest) string {
	return fmt.Sprintf(`<sailingData>
  <location>
    <name>%s</name>
    <lat>%f</lat>
    <lon>%f</lon>
    <localtime>%s</localtime>
  </location>
  <boatInfo>
    <boatType>Cruising Yacht</boatType>
    <length>12.5</length>
    <width>4.2</width>
    <waterlineDepth>1.8</waterlineDepth>
    <mastHeight>16.0</mastHeight>
    <displacement>8500</displacement>
    <keelType>Fin keel</keelType>
    <sailArea>75</sailArea>
    <enginePower>25</enginePower>
    <fuelCapacity>200</fuelCapacity>
    <rudderType>Skeg-hung</rudderType>
    <crewSize>6</crewSize>
    <hullMaterial>Fiberglass</hullMaterial>
  </boatInfo>
  <experience>
    <yearsOfExperience>7</yearsOfExperience>
    <experienceLevel>Intermediate</experienceLevel>
    <typeOfWaterSailed>
      <waterType>Coastal</waterType>
      <waterType>Inland Waters</waterType>
    </typeOfWaterSailed>
    <typesOfBoatsSailed>
      <boatType>Monohull</boatType>
      <boatType>Dinghy</boatType>
    </typesOfBoatsSailed>
    <certifications>
      <certification>ASA 101 Basic Keelboat Sailing</certification>
      <certification>ASA 103 Coastal Navigation</certification>
    </certifications>
    <totalMilesSailed>2500</totalMilesSailed>
    <soloSailingExperience>No</soloSailingExperience>
    <sailingCoursesTraining>
      <course>Coastal Cruising</course>
      <course>Advanced Seamanship</course>
    </sailingCoursesTraining>
  </experience>
</sailingData>`,
		req.Port,
		req.Position.Lat,
		req.Position.Lon,
		req.LocalTime.Format("2006-01-02T15:04:05Z07:00"),
	)
}
